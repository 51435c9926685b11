package approvals

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// snapshot is the on-disk form of the tracker state.
type snapshot struct {
	Replies    map[string]*ReplyDraft        `json:"replies,omitempty"`
	KBAdds     map[string]*KBAdditionDraft   `json:"kb_additions,omitempty"`
	KBRemovals map[string]*KBRemovalDraft    `json:"kb_removals,omitempty"`
	WASends    map[string]*WhatsAppSendDraft `json:"whatsapp_sends,omitempty"`
}

// snapshotLocked writes the current state to snapshotPath atomically
// (temp file + rename). Called with t.mu held. Persistence failures are
// logged as warnings and never block the in-memory transition.
func (t *Tracker) snapshotLocked() {
	if t.snapshotPath == "" {
		return
	}

	data, err := json.MarshalIndent(snapshot{
		Replies:    t.replies,
		KBAdds:     t.kbAdds,
		KBRemovals: t.kbRemovals,
		WASends:    t.waSends,
	}, "", "  ")
	if err != nil {
		slog.Warn("approvals: snapshot marshal failed", "error", err)
		return
	}

	dir := filepath.Dir(t.snapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("approvals: snapshot dir create failed", "dir", dir, "error", err)
		return
	}

	tmp, err := os.CreateTemp(dir, "approvals-*.tmp")
	if err != nil {
		slog.Warn("approvals: snapshot temp create failed", "error", err)
		return
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		slog.Warn("approvals: snapshot write failed", "error", err)
		return
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		slog.Warn("approvals: snapshot sync failed", "error", err)
		return
	}
	tmp.Close()

	if err := os.Rename(tmpPath, t.snapshotPath); err != nil {
		os.Remove(tmpPath)
		slog.Warn("approvals: snapshot rename failed", "error", err)
	}
}

// load replaces the in-memory state with the snapshot on disk, if present.
func (t *Tracker) load() error {
	data, err := os.ReadFile(t.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s.Replies != nil {
		t.replies = s.Replies
	}
	if s.KBAdds != nil {
		t.kbAdds = s.KBAdds
	}
	if s.KBRemovals != nil {
		t.kbRemovals = s.KBRemovals
	}
	if s.WASends != nil {
		t.waSends = s.WASends
	}
	return nil
}
