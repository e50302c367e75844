package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"slackline/internal/domain"
)

// spilledJob is the on-disk form of a pending job. Profiles are stored
// by key and re-resolved on load; file payloads never reach the queue.
type spilledJob struct {
	ID                   string              `json:"id"`
	Profile              string              `json:"profile"`
	Channel              string              `json:"channel"`
	ValidateKnownChannel bool                `json:"validate_known_channel"`
	Text                 *string             `json:"text,omitempty"`
	Blocks               []domain.Block      `json:"blocks,omitempty"`
	Attachments          []domain.Attachment `json:"attachments,omitempty"`
	IconEmoji            string              `json:"icon_emoji,omitempty"`
	ThreadTS             string              `json:"thread_ts,omitempty"`
	Attempts             int                 `json:"attempts"`
	QueuedAt             time.Time           `json:"queued_at"`
}

// spill is a file-based FIFO for jobs that were pending at shutdown.
type spill struct {
	dir string
}

func newSpill(dir string) *spill {
	return &spill{dir: dir}
}

// save writes one job to the spill directory. ULID IDs sort
// lexicographically by creation time, so directory order is queue order.
func (s *spill) save(job *job) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create spill dir: %w", err)
	}

	data, err := json.Marshal(spilledJob{
		ID:                   job.id,
		Profile:              job.req.Profile.Key(),
		Channel:              job.req.Channel,
		ValidateKnownChannel: job.req.ValidateKnownChannel,
		Text:                 job.req.Text,
		Blocks:               job.req.Blocks,
		Attachments:          job.req.Attachments,
		IconEmoji:            job.req.IconEmoji,
		ThreadTS:             job.req.ThreadTS,
		Attempts:             job.attempts,
		QueuedAt:             time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, job.id+".json"), data, 0600)
}

// drain reads and removes all spilled jobs in queue order. Unreadable
// entries are skipped, not fatal.
func (s *spill) drain() ([]spilledJob, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read spill dir: %w", err)
	}

	var jobs []spilledJob
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var sj spilledJob
		if err := json.Unmarshal(data, &sj); err != nil {
			continue
		}
		jobs = append(jobs, sj)
		os.Remove(path)
	}
	return jobs, nil
}
