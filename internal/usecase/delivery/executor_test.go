package delivery

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackline/internal/adapter/slackapi"
	"slackline/internal/domain"
	"slackline/internal/infra/config"
	"slackline/internal/infra/logger"
)

type fakeAPI struct {
	postCalls   []slackapi.PostParams
	uploadCalls []slackapi.UploadParams
	infoCalls   []string

	postTS    string
	postErr   error
	uploadIDs []string
	uploadErr error
	shares    slackapi.FileShares
	infoErr   error
}

func (f *fakeAPI) PostMessage(_ context.Context, p slackapi.PostParams) (string, error) {
	f.postCalls = append(f.postCalls, p)
	return f.postTS, f.postErr
}

func (f *fakeAPI) UploadFiles(_ context.Context, p slackapi.UploadParams) ([]string, error) {
	f.uploadCalls = append(f.uploadCalls, p)
	return f.uploadIDs, f.uploadErr
}

func (f *fakeAPI) FileInfo(_ context.Context, fileID string) (slackapi.FileShares, error) {
	f.infoCalls = append(f.infoCalls, fileID)
	return f.shares, f.infoErr
}

func (f *fakeAPI) calls() int {
	return len(f.postCalls) + len(f.uploadCalls) + len(f.infoCalls)
}

func newTestExecutor(cfg *config.Config, api slackapi.API, opts ...Option) *Executor {
	opts = append(opts, WithAPIFactory(func(*domain.Profile) (slackapi.API, error) {
		return api, nil
	}))
	return NewExecutor(cfg, logger.Discard(), opts...)
}

func TestDeliverEndToEnd(t *testing.T) {
	api := &fakeAPI{postTS: "1503435956.000247"}
	exec := newTestExecutor(testConfig(false), api)
	p, err := domain.NewProfile(domain.DefaultProfileKey, domain.ProfileParams{
		Token:    "xoxb-test",
		Channels: map[string]string{"ops_alerts": "C111"},
	})
	require.NoError(t, err)

	result, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile:              p,
		Channel:              "ops_alerts",
		ValidateKnownChannel: true,
		Text:                 domain.String("test"),
	})
	require.NoError(t, err)
	require.Len(t, api.postCalls, 1)
	assert.Equal(t, "C111", api.postCalls[0].Channel)
	assert.Equal(t, "test", api.postCalls[0].Text)
	assert.Equal(t, "1503435956.000247", result.ThreadTS)
	assert.True(t, result.Delivered)
}

func TestDeliverDisabledKillSwitch(t *testing.T) {
	cfg := testConfig(false)
	cfg.Enabled = boolPtr(false)
	api := &fakeAPI{}
	exec := newTestExecutor(cfg, api)

	result, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "C111",
		Text:    domain.String("hello"),
	})
	require.NoError(t, err)
	assert.False(t, result.Delivered)
	assert.Zero(t, api.calls())
}

func TestDeliverExplicitBlankTextNoCall(t *testing.T) {
	api := &fakeAPI{}
	exec := newTestExecutor(testConfig(false), api)

	result, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "C111",
		Text:    domain.String(""),
	})
	require.NoError(t, err)
	assert.False(t, result.Delivered)
	assert.Empty(t, result.ThreadTS)
	assert.Zero(t, api.calls())
}

func TestDeliverValidationFailureNoCall(t *testing.T) {
	api := &fakeAPI{}
	exec := newTestExecutor(testConfig(false), api)

	_, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "C111",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Zero(t, api.calls())
}

func TestDeliverSandboxRedirect(t *testing.T) {
	api := &fakeAPI{postTS: "1.2"}
	exec := newTestExecutor(testConfig(true), api)
	p := profileWith(t, domain.SandboxPolicy{
		Behavior: domain.SandboxRedirect,
		Channel:  domain.SandboxChannel{ReplaceWith: "C_SANDBOX"},
	})

	_, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: p,
		Channel: "C01H3KU3B9P",
		Text:    domain.String("Hello, World!"),
	})
	require.NoError(t, err)
	require.Len(t, api.postCalls, 1)
	assert.Equal(t, "C_SANDBOX", api.postCalls[0].Channel)
	assert.Contains(t, api.postCalls[0].Text, "<#C01H3KU3B9P>")
	assert.Contains(t, api.postCalls[0].Text, "> Hello, World!")
}

func TestDeliverSandboxNoop(t *testing.T) {
	api := &fakeAPI{}
	exec := newTestExecutor(testConfig(true), api)
	p := profileWith(t, domain.SandboxPolicy{Behavior: domain.SandboxNoop})

	result, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: p,
		Channel: "C111",
		Text:    domain.String("hello"),
	})
	require.NoError(t, err)
	assert.False(t, result.Delivered)
	assert.Empty(t, result.ThreadTS)
	assert.Zero(t, api.calls())
}

func TestDeliverNotInChannelPropagates(t *testing.T) {
	api := &fakeAPI{postErr: &domain.APIError{Kind: domain.APIErrNotInChannel, Code: "not_in_channel"}}
	exec := newTestExecutor(testConfig(false), api)

	_, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "C111",
		Text:    domain.String("hello"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotInChannel)
	assert.Equal(t, Discard, Classify(err).Kind)
}

func TestDeliverArchivedChannelSilenced(t *testing.T) {
	cfg := testConfig(false)
	cfg.SilenceArchivedChannelExceptions = true
	api := &fakeAPI{postErr: &domain.APIError{Kind: domain.APIErrChannelArchived, Code: "is_archived"}}
	exec := newTestExecutor(cfg, api)

	result, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "C111",
		Text:    domain.String("hello"),
	})
	require.NoError(t, err)
	assert.False(t, result.Delivered)
}

func TestDeliverArchivedChannelNotSilenced(t *testing.T) {
	api := &fakeAPI{postErr: &domain.APIError{Kind: domain.APIErrChannelArchived, Code: "is_archived"}}
	exec := newTestExecutor(testConfig(false), api)

	_, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "C111",
		Text:    domain.String("hello"),
	})
	assert.ErrorIs(t, err, domain.ErrChannelArchived)
}

func TestDeliverFilesUpload(t *testing.T) {
	api := &fakeAPI{
		uploadIDs: []string{"F123"},
		shares: slackapi.FileShares{
			Public: map[string][]string{"C111": {"1700000000.000100"}},
		},
	}
	exec := newTestExecutor(testConfig(false), api)

	result, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "C111",
		Text:    domain.String("here you go"),
		Files:   []domain.FileWrapper{{Content: []byte("data"), Filename: "report.csv"}},
	})
	require.NoError(t, err)
	require.Len(t, api.uploadCalls, 1)
	assert.Equal(t, "C111", api.uploadCalls[0].Channel)
	assert.Equal(t, "here you go", api.uploadCalls[0].InitialComment)
	assert.Equal(t, []string{"F123"}, api.infoCalls)
	assert.Equal(t, "1700000000.000100", result.ThreadTS)
	assert.Empty(t, api.postCalls)
}

func TestDeliverFilesPrivateShare(t *testing.T) {
	api := &fakeAPI{
		uploadIDs: []string{"F123"},
		shares: slackapi.FileShares{
			Private: map[string][]string{"G222": {"1700000000.000200"}},
		},
	}
	exec := newTestExecutor(testConfig(false), api)

	result, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "G222",
		Files:   []domain.FileWrapper{{Content: []byte("data"), Filename: "report.csv"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000200", result.ThreadTS)
}

func TestDeliverFilesNoShareStillSucceeds(t *testing.T) {
	api := &fakeAPI{uploadIDs: []string{"F123"}}
	exec := newTestExecutor(testConfig(false), api)

	result, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "C111",
		Files:   []domain.FileWrapper{{Content: []byte("data"), Filename: "report.csv"}},
	})
	require.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.Empty(t, result.ThreadTS)
}

func TestDeliverRecordsAttempts(t *testing.T) {
	rec := &memoryRecorder{}
	api := &fakeAPI{postTS: "1.2"}
	exec := newTestExecutor(testConfig(false), api, WithRecorder(rec))

	_, err := exec.Deliver(context.Background(), &domain.DeliveryRequest{
		Profile: validProfile(t),
		Channel: "C111",
		Text:    domain.String("hello"),
	})
	require.NoError(t, err)
	require.Len(t, rec.attempts, 1)
	assert.Equal(t, "sent", rec.attempts[0].Outcome)
	assert.Equal(t, "1.2", rec.attempts[0].ThreadTS)
	assert.Equal(t, domain.DefaultProfileKey, rec.attempts[0].Profile)
}

func TestDefaultFactoryWrapsBreaker(t *testing.T) {
	apiFor := defaultAPIFactory(testConfig(false), logger.Discard())

	api, err := apiFor(validProfile(t))
	require.NoError(t, err)
	assert.IsType(t, &slackapi.BreakerClient{}, api)

	// Same profile reuses the breaker so failure counts survive
	// across deliveries.
	again, err := apiFor(validProfile(t))
	require.NoError(t, err)
	assert.Same(t, api, again)

	other, err := apiFor(profileWith(t, domain.SandboxPolicy{}))
	require.NoError(t, err)
	assert.NotSame(t, api, other)
}

func TestDefaultFactoryBreakerDisabled(t *testing.T) {
	cfg := testConfig(false)
	cfg.Breaker.Enabled = boolPtr(false)
	apiFor := defaultAPIFactory(cfg, logger.Discard())

	api, err := apiFor(validProfile(t))
	require.NoError(t, err)
	assert.IsType(t, &slackapi.Client{}, api)
}

func TestTruncateRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "h...", truncate("héllo wörld", 2))

	for n := 1; n < len("héllo wörld"); n++ {
		assert.True(t, utf8.ValidString(truncate("héllo wörld", n)))
	}
}

type memoryRecorder struct {
	attempts []Attempt
}

func (m *memoryRecorder) Record(_ context.Context, a Attempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}
