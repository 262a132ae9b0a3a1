package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/notify"
	"account-service/internal/server/middleware"
)

func newApp(outbox Reader) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(false)})
	NewHandler(outbox).Mount(app.Group("/dev"))
	return app
}

func TestOutbox_ReturnsMessages(t *testing.T) {
	outbox := notify.NewOutbox(0)
	ctx := context.Background()
	_ = outbox.Send(ctx, notify.Message{To: "Ada@Example.com", Subject: "first", Text: "one"})
	_ = outbox.Send(ctx, notify.Message{To: "ada@example.com", Subject: "second", Text: "two"})
	_ = outbox.Send(ctx, notify.Message{To: "bob@example.com", Subject: "other", Text: "x"})

	resp, err := newApp(outbox).Test(httptest.NewRequest(http.MethodGet, "/dev/outbox/ada@example.com", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status string           `json:"status"`
		Count  int              `json:"count"`
		Data   []notify.Message `json:"data"`
		Note   string           `json:"note"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || len(body.Data) != 2 {
		t.Fatalf("count = %d, len = %d; want 2", body.Count, len(body.Data))
	}
	if body.Data[0].Subject != "first" || body.Data[1].Subject != "second" {
		t.Errorf("messages out of order: %+v", body.Data)
	}
	if body.Note != devOutboxNote {
		t.Errorf("note = %q", body.Note)
	}
}

func TestOutbox_Empty(t *testing.T) {
	resp, err := newApp(notify.NewOutbox(0)).Test(httptest.NewRequest(http.MethodGet, "/dev/outbox/nobody@example.com", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
