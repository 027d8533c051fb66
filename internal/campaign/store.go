package campaign

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dialcast/internal/api"
	"dialcast/internal/logging"
)

const latestPointerFile = "latest.json"

// Store persists campaign records as one JSON file per campaign under
// <dataDir>/campaigns, plus a latest.json pointer copy.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore returns a store rooted at <dataDir>/campaigns. The directory is
// created lazily on first write.
func NewStore(dataDir string) *Store {
	return &Store{dir: filepath.Join(dataDir, "campaigns")}
}

func newCampaignID(now time.Time) string {
	return fmt.Sprintf("campaign_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Merge folds freshly created calls into the campaign for the given source
// identity, creating the campaign if this is the first dispatch from that
// source. Existing call ids are never duplicated; call metadata from the new
// batch wins over what was recorded before.
func (s *Store) Merge(newCalls []api.CreatedCall, agentID, sourceIdentity string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.findBySourceLocked(sourceIdentity)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if record == nil {
		record = &Record{
			CampaignID:     newCampaignID(now),
			SourceIdentity: sourceIdentity,
			AgentID:        agentID,
			CallMapping:    make(map[string]CallMeta),
			CreatedAt:      now,
		}
		logging.Store("created campaign %s for source %s", record.CampaignID, sourceIdentity)
	}
	if record.CallMapping == nil {
		record.CallMapping = make(map[string]CallMeta)
	}

	for _, call := range newCalls {
		if call.CallID == "" {
			continue
		}
		if !record.HasCall(call.CallID) {
			record.CallIDs = append(record.CallIDs, call.CallID)
		}
		record.CallMapping[call.CallID] = CallMeta{
			Endpoint:       call.Endpoint,
			AdditionalData: call.AdditionalData,
		}
	}
	record.TotalCalls = len(record.CallIDs)
	record.LastUpdated = now

	if err := s.saveLocked(record); err != nil {
		return nil, err
	}
	logging.StoreDebug("merged %d calls into %s (total %d)", len(newCalls), record.CampaignID, record.TotalCalls)
	return record, nil
}

// EnrolledEndpoints returns the set of endpoints already enrolled in the
// campaign for the given source identity, for pre-dispatch deduplication.
func (s *Store) EnrolledEndpoints(sourceIdentity string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.findBySourceLocked(sourceIdentity)
	if err != nil {
		return nil, err
	}
	endpoints := make(map[string]struct{})
	if record == nil {
		return endpoints, nil
	}
	for _, meta := range record.CallMapping {
		if meta.Endpoint != "" {
			endpoints[meta.Endpoint] = struct{}{}
		}
	}
	return endpoints, nil
}

// Get loads a campaign by id.
func (s *Store) Get(campaignID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readLocked(s.Path(campaignID))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("campaign %s not found", campaignID)
	}
	return record, nil
}

// Latest returns the most recently written campaign via the latest.json
// pointer file.
func (s *Store) Latest() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readLocked(filepath.Join(s.dir, latestPointerFile))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("no campaigns recorded yet")
	}
	return record, nil
}

// List returns every readable campaign, newest first. Corrupt files are
// skipped rather than failing the whole listing.
func (s *Store) List() ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

// Path returns the on-disk location of a campaign record, for file watchers.
func (s *Store) Path(campaignID string) string {
	return filepath.Join(s.dir, campaignID+".json")
}

func (s *Store) findBySourceLocked(sourceIdentity string) (*Record, error) {
	records, err := s.listLocked()
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.SourceIdentity == sourceIdentity {
			return record, nil
		}
	}
	return nil, nil
}

func (s *Store) listLocked() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign directory: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == latestPointerFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		record, err := s.readLocked(filepath.Join(s.dir, name))
		if err != nil || record == nil {
			logging.Store("skipping unreadable campaign file %s", name)
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (s *Store) readLocked(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign file: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse campaign file %s: %w", filepath.Base(path), err)
	}
	if record.CampaignID == "" {
		return nil, fmt.Errorf("campaign file %s has no campaign id", filepath.Base(path))
	}
	return &record, nil
}

func (s *Store) saveLocked(record *Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create campaign directory: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode campaign record: %w", err)
	}
	if err := os.WriteFile(s.Path(record.CampaignID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write campaign file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, latestPointerFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write latest pointer: %w", err)
	}
	return nil
}
