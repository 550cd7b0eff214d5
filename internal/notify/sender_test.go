package notify_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/lavente-care/iam-gateway/internal/notify"
	"github.com/lavente-care/iam-gateway/internal/verification"
	"github.com/stretchr/testify/require"
)

func TestDevSender_NeverReturnsError(t *testing.T) {
	s := &notify.DevSender{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := s.Send(context.Background(), notify.KindEmail, "person@example.test", "verification_code", map[string]string{"code": "123456"})

	require.NoError(t, err)
}

type recordingSender struct {
	kind         notify.Kind
	to           string
	templateName string
	variables    map[string]string
}

func (r *recordingSender) Send(ctx context.Context, kind notify.Kind, to, templateName string, variables map[string]string) error {
	r.kind = kind
	r.to = to
	r.templateName = templateName
	r.variables = variables
	return nil
}

func TestCodeSenderAdapter_RoutesEmailTargetToEmailKind(t *testing.T) {
	rec := &recordingSender{}
	adapter := &notify.CodeSenderAdapter{Sender: rec}

	require.NoError(t, adapter.SendCode(context.Background(), verification.TargetEmail, "person@example.test", "654321"))

	require.Equal(t, notify.KindEmail, rec.kind)
	require.Equal(t, "person@example.test", rec.to)
	require.Equal(t, "654321", rec.variables["code"])
}

func TestCodeSenderAdapter_RoutesPhoneTargetToSMSKind(t *testing.T) {
	rec := &recordingSender{}
	adapter := &notify.CodeSenderAdapter{Sender: rec}

	require.NoError(t, adapter.SendCode(context.Background(), verification.TargetPhone, "+15551234567", "111222"))

	require.Equal(t, notify.KindSMS, rec.kind)
}
