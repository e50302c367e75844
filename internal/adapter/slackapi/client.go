package slackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"slackline/internal/domain"
)

// PostParams carries a chat.postMessage call. Only non-zero optional
// fields are forwarded to Slack.
type PostParams struct {
	Channel     string
	Text        string
	Blocks      []domain.Block
	Attachments []domain.Attachment
	IconEmoji   string
	ThreadTS    string
}

// UploadParams carries a batch file upload. InitialComment accompanies
// the first file.
type UploadParams struct {
	Files          []domain.FileWrapper
	Channel        string
	InitialComment string
}

// FileShares is the share map from files.info: channel ID to the
// timestamps of the messages the file was shared in.
type FileShares struct {
	Public  map[string][]string
	Private map[string][]string
}

// API is the Slack Web API surface the delivery pipeline depends on.
// Implementations return *domain.APIError for failures surfaced by
// Slack, so the classifier can dispatch on kinds rather than client
// error types.
type API interface {
	PostMessage(ctx context.Context, p PostParams) (ts string, err error)
	UploadFiles(ctx context.Context, p UploadParams) (fileIDs []string, err error)
	FileInfo(ctx context.Context, fileID string) (FileShares, error)
}

// Client implements API on github.com/slack-go/slack.
type Client struct {
	api    *slack.Client
	logger *slog.Logger
}

// New creates a Client for the given workspace token.
func New(token string, logger *slog.Logger) *Client {
	return &Client{api: slack.New(token), logger: logger}
}

// ForProfile returns the profile's memoized client, constructing it on
// first use. Token resolution errors surface here.
func ForProfile(p *domain.Profile, logger *slog.Logger) (*Client, error) {
	token, err := p.Token()
	if err != nil {
		return nil, domain.WrapOp("resolve token", err)
	}
	handle := p.ClientHandle(func() any { return New(token, logger) })
	client, ok := handle.(*Client)
	if !ok {
		return nil, domain.NewDomainError("slackapi.ForProfile", domain.ErrConfiguration,
			fmt.Sprintf("profile %q holds a foreign client handle", p.Key()))
	}
	return client, nil
}

func (c *Client) PostMessage(ctx context.Context, p PostParams) (string, error) {
	opts := make([]slack.MsgOption, 0, 4)
	if p.Text != "" {
		opts = append(opts, slack.MsgOptionText(p.Text, false))
	}
	if len(p.Blocks) > 0 {
		blocks := make([]slack.Block, len(p.Blocks))
		for i, b := range p.Blocks {
			blocks[i] = rawBlock{m: domain.NormalizeKeys(map[string]any(b)).(map[string]any)}
		}
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	if len(p.Attachments) > 0 {
		atts, err := convertAttachments(p.Attachments)
		if err != nil {
			return "", domain.WrapOp("convert attachments", err)
		}
		opts = append(opts, slack.MsgOptionAttachments(atts...))
	}
	if p.IconEmoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(p.IconEmoji))
	}
	if p.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(p.ThreadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, p.Channel, opts...)
	if err != nil {
		return "", mapError(err)
	}
	return ts, nil
}

func (c *Client) UploadFiles(ctx context.Context, p UploadParams) ([]string, error) {
	ids := make([]string, 0, len(p.Files))
	for i, f := range p.Files {
		params := slack.UploadFileV2Parameters{
			Reader:   bytes.NewReader(f.Content),
			Filename: f.Filename,
			FileSize: len(f.Content),
			Channel:  p.Channel,
		}
		if i == 0 {
			params.InitialComment = p.InitialComment
		}
		summary, err := c.api.UploadFileV2Context(ctx, params)
		if err != nil {
			return ids, mapError(err)
		}
		ids = append(ids, summary.ID)
	}
	return ids, nil
}

func (c *Client) FileInfo(ctx context.Context, fileID string) (FileShares, error) {
	file, _, _, err := c.api.GetFileInfoContext(ctx, fileID, 0, 0)
	if err != nil {
		return FileShares{}, mapError(err)
	}
	shares := FileShares{
		Public:  make(map[string][]string, len(file.Shares.Public)),
		Private: make(map[string][]string, len(file.Shares.Private)),
	}
	for channel, infos := range file.Shares.Public {
		for _, info := range infos {
			shares.Public[channel] = append(shares.Public[channel], info.Ts)
		}
	}
	for channel, infos := range file.Shares.Private {
		for _, info := range infos {
			shares.Private[channel] = append(shares.Private[channel], info.Ts)
		}
	}
	return shares, nil
}

// rawBlock lets caller-supplied block maps ride through slack-go's typed
// block serialization unchanged.
type rawBlock struct {
	m map[string]any
}

func (b rawBlock) BlockType() slack.MessageBlockType {
	t, _ := b.m["type"].(string)
	return slack.MessageBlockType(t)
}

func (b rawBlock) ID() string {
	id, _ := b.m["block_id"].(string)
	return id
}

func (b rawBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.m)
}

func convertAttachments(atts []domain.Attachment) ([]slack.Attachment, error) {
	out := make([]slack.Attachment, len(atts))
	for i, a := range atts {
		data, err := json.Marshal(domain.NormalizeKeys(map[string]any(a)))
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
