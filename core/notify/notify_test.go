package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fanfansh/topupbot/core/orders"

	tele "gopkg.in/telebot.v4"
)

type fakeSender struct {
	err  error
	to   []tele.Recipient
	text []string
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.to = append(f.to, to)
	if s, ok := what.(string); ok {
		f.text = append(f.text, s)
	}
	return &tele.Message{}, nil
}

func details() Details {
	return Details{TrxID: "TRX-1", Product: "Diamond 100", Destination: "08123456789", Price: 25000}
}

func TestOrderProcessing(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender)

	if err := n.OrderProcessing(context.Background(), 42, details()); err != nil {
		t.Fatalf("OrderProcessing: %v", err)
	}
	if len(sender.text) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.text))
	}
	for _, want := range []string{"TRX-1", "Diamond 100", "08123456789", "Rp 25.000"} {
		if !strings.Contains(sender.text[0], want) {
			t.Fatalf("message %q missing %q", sender.text[0], want)
		}
	}
	if u, ok := sender.to[0].(*tele.User); !ok || u.ID != 42 {
		t.Fatalf("recipient = %+v", sender.to[0])
	}
}

func TestStatusTextsPairwiseDistinct(t *testing.T) {
	statuses := []orders.Status{orders.StatusPending, orders.StatusSuccess, orders.StatusFailed}
	texts := make(map[orders.Status]string)
	for _, s := range statuses {
		text, err := StatusText(details(), s)
		if err != nil {
			t.Fatalf("StatusText(%s): %v", s, err)
		}
		texts[s] = text
	}
	for i, a := range statuses {
		for _, b := range statuses[i+1:] {
			if texts[a] == texts[b] {
				t.Errorf("statuses %s and %s render identically", a, b)
			}
		}
	}
}

func TestStatusTextUnknown(t *testing.T) {
	if _, err := StatusText(details(), "paid"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestRecipientGoneMapped(t *testing.T) {
	cases := []struct {
		name string
		err  error
		gone bool
	}{
		{"blocked", &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, true},
		{"chat_not_found", &tele.Error{Code: 400, Description: "Bad Request: chat not found"}, true},
		{"other_400", &tele.Error{Code: 400, Description: "Bad Request: message is too long"}, false},
		{"transport", errors.New("dial tcp: timeout"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := New(&fakeSender{err: tc.err})
			err := n.OrderStatus(context.Background(), 42, details(), orders.StatusSuccess)
			if got := errors.Is(err, ErrRecipientNotFound); got != tc.gone {
				t.Fatalf("ErrRecipientNotFound = %v, want %v (err=%v)", got, tc.gone, err)
			}
		})
	}
}
