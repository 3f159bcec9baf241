package validate

import (
	"testing"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

func TestField_Email(t *testing.T) {
	cases := []struct {
		value string
		valid bool
	}{
		{"juan@empresa.com", true},
		{"juan.perez+leads@empresa.com.ar", true},
		{"  juan@empresa.com  ", true},
		{"a@b", false},
		{"sin arroba", false},
		{"", false},
	}
	for _, c := range cases {
		msg := Field(models.FieldEmail, c.value)
		if (msg == "") != c.valid {
			t.Errorf("Field(email, %q): valid=%v, got message %q", c.value, c.valid, msg)
		}
	}
}

func TestField_MinimumLengths(t *testing.T) {
	cases := []struct {
		field string
		value string
		valid bool
	}{
		{models.FieldAddress, "Av. Belgrano 520", true},
		{models.FieldAddress, "ab", false},
		{models.FieldVisitWindow, "lunes a viernes de 9 a 18", true},
		{models.FieldVisitWindow, "hoy", false},
		{models.FieldDescription, "recarga de 10 matafuegos ABC", true},
		{models.FieldDescription, "corto", false},
	}
	for _, c := range cases {
		msg := Field(c.field, c.value)
		if (msg == "") != c.valid {
			t.Errorf("Field(%s, %q): valid=%v, got message %q", c.field, c.value, c.valid, msg)
		}
	}
}

func TestFields_AggregatesAllFailures(t *testing.T) {
	values := map[string]string{
		models.FieldEmail:       "invalido",
		models.FieldAddress:     "x",
		models.FieldDescription: "recarga de 10 matafuegos ABC",
	}
	order := []string{models.FieldEmail, models.FieldAddress, models.FieldVisitWindow, models.FieldDescription}

	errs := Fields(values, order)
	if len(errs) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != models.FieldEmail {
		t.Errorf("expected first error on email, got %s", errs[0].Field)
	}
	if errs[1].Field != models.FieldAddress {
		t.Errorf("expected second error on address, got %s", errs[1].Field)
	}
}

func TestFields_SkipsAbsentFields(t *testing.T) {
	values := map[string]string{models.FieldEmail: "juan@empresa.com"}
	errs := Fields(values, []string{models.FieldEmail, models.FieldAddress})
	if len(errs) != 0 {
		t.Errorf("expected no errors for absent fields, got %v", errs)
	}
}
