package sse

import (
	"testing"

	"BloodLink/pkg/notification"

	"github.com/stretchr/testify/assert"
)

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case m := <-c.ch:
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestPublishRouting(t *testing.T) {
	h := NewHub(0)
	all := h.AddClient("all")
	lowStock := h.AddClient("low")
	h.Join("low", notification.ScopeLowStock)
	donor := h.AddClient("donor")
	h.Join("donor", DonorGroup("7"))

	h.Publish(notification.ScopeGlobal, notification.Entry{Type: notification.TypeBloodRequest, Message: "new"})
	h.Publish(notification.ScopeLowStock, notification.Entry{Type: notification.TypeLowStock, Message: "A+"})
	h.Publish(notification.ScopeDonor, notification.Entry{Message: "come in", DonorID: "7"})
	h.Publish(notification.ScopeDonor, notification.Entry{Message: "other", DonorID: "8"})

	assert.Len(t, drain(all), 2)

	got := drain(lowStock)
	if assert.Len(t, got, 1) {
		assert.Contains(t, got[0], "event: low_stock_alerts\n")
	}

	got = drain(donor)
	if assert.Len(t, got, 1) {
		assert.Contains(t, got[0], "come in")
	}
}

func TestRemoveClient(t *testing.T) {
	h := NewHub(0)
	h.AddClient("a")
	h.Join("a", "g")
	assert.Equal(t, 1, h.Count())

	h.RemoveClient("a")
	assert.Equal(t, 0, h.Count())
	assert.Empty(t, h.groups["g"])

	h.Publish("g", notification.Entry{})
}
