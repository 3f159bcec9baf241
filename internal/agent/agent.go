// Package agent interprets the human agent's messages. Anything starting
// with the command marker is parsed against a fixed alias table; everything
// else is a free-text reply for the currently active conversation.
package agent

import (
	"fmt"
	"strings"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/handoff"
)

// CommandMarker prefixes agent commands, e.g. "/listo".
const CommandMarker = "/"

// Command is one of the closed set of agent commands.
type Command int

const (
	// CommandNone marks prefixed input that matched no alias.
	CommandNone Command = iota
	// CommandFinish closes the active conversation.
	CommandFinish
	// CommandAdvance defers the active conversation to the tail of the queue.
	CommandAdvance
	// CommandStatus renders the queue listing.
	CommandStatus
	// CommandActive shows who is currently being attended.
	CommandActive
	// CommandHelp lists the available commands.
	CommandHelp
)

var commandAliases = map[string]Command{
	"finish":    CommandFinish,
	"f":         CommandFinish,
	"done":      CommandFinish,
	"resolved":  CommandFinish,
	"listo":     CommandFinish,
	"resuelto":  CommandFinish,
	"next":      CommandAdvance,
	"n":         CommandAdvance,
	"skip":      CommandAdvance,
	"siguiente": CommandAdvance,
	"queue":     CommandStatus,
	"q":         CommandStatus,
	"list":      CommandStatus,
	"cola":      CommandStatus,
	"active":    CommandActive,
	"current":   CommandActive,
	"a":         CommandActive,
	"actual":    CommandActive,
	"help":      CommandHelp,
	"h":         CommandHelp,
	"?":         CommandHelp,
	"ayuda":     CommandHelp,
}

// Parse classifies an agent message. isCommand is true when the message
// carries the command marker, even if the token matches no alias; in that
// case the command is CommandNone and the text must not be forwarded.
func Parse(text string) (cmd Command, isCommand bool) {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, CommandMarker) {
		return CommandNone, false
	}
	token := strings.ToLower(strings.TrimPrefix(t, CommandMarker))
	if i := strings.IndexAny(token, " \t"); i >= 0 {
		token = token[:i]
	}
	if cmd, ok := commandAliases[token]; ok {
		return cmd, true
	}
	return CommandNone, true
}

// HelpMessage lists the commands for the agent.
func HelpMessage() string {
	return "🛠 *Comandos disponibles*\n\n" +
		"/listo — cerrar la conversación actual\n" +
		"/siguiente — pasar la conversación actual al final de la cola\n" +
		"/cola — ver la cola de atención\n" +
		"/actual — ver a quién estás atendiendo\n" +
		"/ayuda — mostrar esta ayuda"
}

// UnknownCommandMessage is sent back when a prefixed token matches no alias.
func UnknownCommandMessage(text string) string {
	return fmt.Sprintf("❓ No reconozco el comando %q. Escribí /ayuda para ver los disponibles.", strings.TrimSpace(text))
}

// NoActiveMessage warns the agent that a free-text reply had no recipient.
const NoActiveMessage = "⚠️ No hay ninguna conversación activa. Escribí /cola para ver la cola."

// ActiveAnnouncement tells the agent who just became the active conversation.
func ActiveAnnouncement(e handoff.Entry) string {
	name := e.SenderName
	if name == "" {
		name = e.ID
	}
	return fmt.Sprintf("▶️ Ahora estás atendiendo a *%s* (%s).", name, e.ID)
}

// EnqueueAnnouncement tells the agent that a new conversation joined the
// queue, quoting the message that triggered the handoff when there is one.
func EnqueueAnnouncement(e handoff.Entry, position, size int) string {
	name := e.SenderName
	if name == "" {
		name = e.ID
	}
	var msg string
	if position == 1 {
		msg = fmt.Sprintf("🔔 *%s* (%s) pidió hablar con una persona y ya está en atención.", name, e.ID)
	} else {
		msg = fmt.Sprintf("🔔 *%s* (%s) pidió hablar con una persona. Posición %d de %d en la cola.", name, e.ID, position, size)
	}
	if snippet := handoff.ContextSnippet(e.Context); snippet != "" {
		msg += fmt.Sprintf("\n💬 «%s»", snippet)
	}
	return msg
}

// ActiveStatusMessage describes the current active conversation, or the
// empty queue.
func ActiveStatusMessage(e handoff.Entry, ok bool) string {
	if !ok {
		return "ℹ️ No hay conversaciones en la cola."
	}
	return ActiveAnnouncement(e)
}

// ClosedAnnouncement confirms a close to the agent, naming who follows.
func ClosedAnnouncement(closed handoff.Entry, next *handoff.Entry) string {
	name := closed.SenderName
	if name == "" {
		name = closed.ID
	}
	msg := fmt.Sprintf("✅ Conversación con *%s* cerrada.", name)
	if next != nil {
		msg += "\n\n" + ActiveAnnouncement(*next)
	} else {
		msg += " La cola quedó vacía."
	}
	return msg
}
