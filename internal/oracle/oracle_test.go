package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"Pedigree/internal/command"
	"Pedigree/internal/keys"
	"Pedigree/internal/ledger"
	"Pedigree/internal/offchain"
	"Pedigree/internal/pool"
	"Pedigree/internal/processor"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SubmitUnsigned(cmd command.Command) error {
	return m.Called(cmd).Error(0)
}

type staticSource struct {
	quote Quote
	err   error
}

func (s staticSource) Fetch(context.Context) (Quote, error) {
	return s.quote, s.err
}

func quoteServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func signedPayload(t *testing.T) (command.Command, *keys.BLSKeyPair) {
	t.Helper()

	bls, err := keys.GenerateBLSKey()
	require.NoError(t, err)

	p := command.OraclePayload{Price: []byte("64000.10"), Public: bls.PublicKeyBytes()}
	return command.NewUnsigned(command.SubmitOraclePayload(p, bls.Sign(p.SigningBytes()))), bls
}

func TestHTTPQuoteSource(t *testing.T) {
	srv := quoteServer(t, http.StatusOK, `{"mins":5,"price":"64000.10"}`)

	q, err := NewHTTPQuoteSource(srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, Quote{Minutes: 5, Price: "64000.10"}, q)
}

func TestHTTPQuoteSourceNon200(t *testing.T) {
	srv := quoteServer(t, http.StatusTooManyRequests, `{}`)

	_, err := NewHTTPQuoteSource(srv.URL, time.Second).Fetch(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestHTTPQuoteSourceBadJSON(t *testing.T) {
	srv := quoteServer(t, http.StatusOK, `{"mins":"five"}`)

	_, err := NewHTTPQuoteSource(srv.URL, time.Second).Fetch(context.Background())
	require.Error(t, err)
}

// TestHTTPQuoteSourceDeadline verifies a slow endpoint fails at the deadline.
func TestHTTPQuoteSourceDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	start := time.Now()
	_, err := NewHTTPQuoteSource(srv.URL, 50*time.Millisecond).Fetch(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestValidatorAccepts(t *testing.T) {
	cmd, _ := signedPayload(t)

	validity, err := NewValidator().Validate(cmd, 7)
	require.NoError(t, err)
	require.Equal(t, pool.Validity{
		Tag:       ProvidesTag,
		Priority:  100,
		Longevity: 3,
		Propagate: true,
	}, validity)
}

// TestValidatorRejectsBadSignature verifies forged payloads never reach the pool.
func TestValidatorRejectsBadSignature(t *testing.T) {
	cmd, _ := signedPayload(t)
	other, err := keys.GenerateBLSKey()
	require.NoError(t, err)

	// Signature by another key over the same payload.
	forged := cmd
	call := forged.Call
	call.PayloadSignature = other.Sign(call.Payload.SigningBytes())
	forged.Call = call

	_, err = NewValidator().Validate(forged, 0)
	require.ErrorIs(t, err, processor.ErrBadSignature)

	// Price altered after signing.
	altered := cmd.Call
	altered.Payload = &command.OraclePayload{Price: []byte("1"), Public: cmd.Call.Payload.Public}
	_, err = NewValidator().Validate(command.NewUnsigned(altered), 0)
	require.ErrorIs(t, err, processor.ErrBadSignature)

	// The pool never admits it.
	p := pool.New(10, NewValidator())
	require.ErrorIs(t, p.SubmitUnsigned(forged), processor.ErrBadSignature)
	require.Zero(t, p.Len())
}

func TestValidatorRejectsOtherCalls(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate(command.NewUnsigned(command.List(1)), 0)
	require.ErrorIs(t, err, processor.ErrUnauthorizedCall)

	_, err = v.Validate(command.NewUnsigned(command.Create(ledger.Label{})), 0)
	require.ErrorIs(t, err, processor.ErrUnauthorizedCall)

	cmd, _ := signedPayload(t)
	cmd.Origin = command.Signed(ledger.AccountID{1})
	_, err = v.Validate(cmd, 0)
	require.ErrorIs(t, err, processor.ErrUnauthorizedCall)
}

func TestProducerRoundSubmits(t *testing.T) {
	bls, err := keys.GenerateBLSKey()
	require.NoError(t, err)

	sub := new(mockSubmitter)
	sub.On("SubmitUnsigned", mock.MatchedBy(func(cmd command.Command) bool {
		_, err := NewValidator().Validate(cmd, 0)
		return err == nil && string(cmd.Call.Payload.Price) == "64000.10"
	})).Return(nil).Once()

	notes, err := offchain.OpenPebble(t.TempDir())
	require.NoError(t, err)
	defer notes.Close()

	label, _ := ledger.ParseLabel("tom")
	note := offchain.IndexingNote{Op: offchain.OpSubmitName, Label: label}
	require.NoError(t, notes.Set(context.Background(), offchain.NoteKey(4), note.Encode()))

	producer := NewProducer(notes, staticSource{quote: Quote{Minutes: 5, Price: "64000.10"}}, bls, sub)
	require.NoError(t, producer.Run(context.Background(), 4))

	sub.AssertExpectations(t)
}

// TestProducerFailsSoft verifies failed rounds submit nothing.
func TestProducerFailsSoft(t *testing.T) {
	bls, _ := keys.GenerateBLSKey()
	fetchErr := errors.New("network down")

	sub := new(mockSubmitter)

	producer := NewProducer(nil, staticSource{err: fetchErr}, bls, sub)
	require.ErrorIs(t, producer.Run(context.Background(), 1), fetchErr)

	producer = NewProducer(nil, staticSource{quote: Quote{Price: "1"}}, nil, sub)
	require.ErrorIs(t, producer.Run(context.Background(), 1), ErrNoSigner)

	sub.AssertNotCalled(t, "SubmitUnsigned", mock.Anything)
}

func TestProducerSubmitError(t *testing.T) {
	bls, _ := keys.GenerateBLSKey()

	sub := new(mockSubmitter)
	sub.On("SubmitUnsigned", mock.Anything).Return(pool.ErrPoolFull)

	producer := NewProducer(nil, staticSource{quote: Quote{Price: "1"}}, bls, sub)
	require.ErrorIs(t, producer.Run(context.Background(), 1), pool.ErrPoolFull)
}

// TestProducerIntoPool runs a round against the real pool and validator.
func TestProducerIntoPool(t *testing.T) {
	bls, _ := keys.GenerateBLSKey()
	p := pool.New(10, NewValidator())

	producer := NewProducer(nil, staticSource{quote: Quote{Price: "2.5"}}, bls, p)
	producer.Trigger(context.Background(), 1)
	producer.Wait()

	cmds := p.Drain(1, 10)
	require.Len(t, cmds, 1)
	require.Equal(t, command.KindSubmitOraclePayload, cmds[0].Call.Kind)
	require.Equal(t, []byte("2.5"), cmds[0].Call.Payload.Price)
}
