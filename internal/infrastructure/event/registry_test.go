package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	t.Run("type handlers come before wildcard handlers", func(t *testing.T) {
		r := NewHandlerRegistry()
		wildcard := newTestHandler()
		typed := newTestHandler("a")

		r.Register(wildcard)
		r.Register(typed, "a")

		handlers := r.GetHandlers("a")
		assert.Len(t, handlers, 2)
		assert.Same(t, typed, handlers[0])
		assert.Same(t, wildcard, handlers[1])
		assert.Len(t, r.GetHandlers("b"), 1)
	})

	t.Run("unregister removes a multi-type handler everywhere", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler("a", "b")
		r.Register(h, "a", "b")
		assert.Len(t, r.GetHandlers("b"), 1)

		r.Unregister(h)
		assert.Empty(t, r.GetHandlers("a"))
		assert.Empty(t, r.GetHandlers("b"))
	})
}
