package plan

import (
	"testing"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

func TestFor_UrgencyHasNoPlan(t *testing.T) {
	if _, ok := For(models.CategoryUrgency); ok {
		t.Error("expected urgency to have no collection plan")
	}
}

func TestFor_QuoteCollectsAllFieldsInOrder(t *testing.T) {
	p, ok := For(models.CategoryQuote)
	if !ok {
		t.Fatal("expected quote plan to exist")
	}
	want := []string{models.FieldEmail, models.FieldAddress, models.FieldVisitWindow, models.FieldDescription}
	got := p.FieldNames()
	if len(got) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestFor_OtherSkipsAddressAndVisitWindow(t *testing.T) {
	p, ok := For(models.CategoryOther)
	if !ok {
		t.Fatal("expected plan for other category")
	}
	got := p.FieldNames()
	want := []string{models.FieldEmail, models.FieldDescription}
	if len(got) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	email, ok := p.Field(models.FieldEmail)
	if !ok {
		t.Fatal("email spec missing")
	}
	if !email.Optional || email.SkipWord != "omitir" {
		t.Errorf("expected email to be skippable with 'omitir', got %+v", email)
	}
}

func TestPlan_MissingFollowsPlanOrder(t *testing.T) {
	p, _ := For(models.CategoryTechnicalVisit)

	contact := &models.ContactRecord{Address: "Av. Corrientes 1234"}
	missing := p.Missing(contact)
	want := []string{models.FieldEmail, models.FieldVisitWindow, models.FieldDescription}
	if len(missing) != len(want) {
		t.Fatalf("expected missing %v, got %v", want, missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("missing[%d]: expected %q, got %q", i, want[i], missing[i])
		}
	}
}

func TestPlan_MissingTreatsSkippedAsFilled(t *testing.T) {
	p, _ := For(models.CategoryOther)

	contact := &models.ContactRecord{Email: SkippedSentinel}
	missing := p.Missing(contact)
	if len(missing) != 1 || missing[0] != models.FieldDescription {
		t.Errorf("expected only description missing, got %v", missing)
	}
}

func TestPlan_IsLast(t *testing.T) {
	p, _ := For(models.CategoryQuote)
	if p.IsLast(models.FieldEmail) {
		t.Error("email is not the last field of the quote plan")
	}
	if !p.IsLast(models.FieldDescription) {
		t.Error("description should be the last field of the quote plan")
	}
}
