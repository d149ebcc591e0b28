package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanziv9999/GharkoSwad/configs"
	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/identity"
	"github.com/sanziv9999/GharkoSwad/internal/models"
)

type stubUsers map[uint]identity.User

func (s stubUsers) GetUser(_ context.Context, id uint) (identity.User, error) {
	u, ok := s[id]
	if !ok {
		return identity.User{}, apperr.Newf(apperr.CodeNotFound, "user not found: %d", id)
	}
	return u, nil
}

type fakeSES struct {
	mu     sync.Mutex
	inputs []*ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return &ses.SendEmailOutput{}, nil
}

func TestSMSSenderPostsForm(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = map[string]string{
			"to":      r.PostForm.Get("to"),
			"message": r.PostForm.Get("message"),
			"apikey":  r.Header.Get("apikey"),
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 1/1"}}`))
	}))
	defer srv.Close()

	sender := NewSMSSender(config.AfricaTalkingConfig{Username: "sandbox", APIKey: "key", SMSURL: srv.URL, SenderID: "GHARKO"})
	require.NoError(t, sender.Send(context.Background(), "+9779800000000", "hello"))

	assert.Equal(t, "+9779800000000", got["to"])
	assert.Equal(t, "hello", got["message"])
	assert.Equal(t, "key", got["apikey"])
}

func TestSMSSenderReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"invalid api key"}}`))
	}))
	defer srv.Close()

	sender := NewSMSSender(config.AfricaTalkingConfig{SMSURL: srv.URL})
	err := sender.Send(context.Background(), "+9779800000000", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")

	assert.Error(t, sender.Send(context.Background(), "", "hello"))
}

func TestDispatcherFansOut(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		texts = append(texts, r.PostForm.Get("message"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	mail := &fakeSES{}
	users := stubUsers{1: {ID: 1, Name: "Sita", Email: "sita@example.com", Phone: "+9779800000001", Role: models.RoleUser}}
	d := NewDispatcher(users, "NPR").
		WithSMS(NewSMSSender(config.AfricaTalkingConfig{SMSURL: srv.URL})).
		WithEmail(&EmailSender{sender: "orders@example.com", client: mail})

	err := d.Notify(context.Background(), Notification{Kind: KindOrderPlaced, OrderID: 9, BuyerID: 1, AmountMinor: 1300})
	require.NoError(t, err)

	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "order #9")
	assert.Contains(t, texts[0], "NPR 13.00")

	require.Len(t, mail.inputs, 1)
	assert.Equal(t, []string{"sita@example.com"}, mail.inputs[0].Destination.ToAddresses)
	assert.Equal(t, "Order #9 placed", *mail.inputs[0].Message.Subject.Data)
}

func TestDispatcherUnknownBuyer(t *testing.T) {
	d := NewDispatcher(stubUsers{}, "NPR")
	err := d.Notify(context.Background(), Notification{Kind: KindOrderDelivered, OrderID: 1, BuyerID: 5})
	require.Error(t, err)

	var appErr *apperr.Error
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.CodeNotFound, appErr.Code)
}
