package campaign

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialcast/internal/api"
)

func created(id, endpoint string) api.CreatedCall {
	return api.CreatedCall{CallID: id, Endpoint: endpoint, Status: "queued"}
}

func TestMergeCreatesCampaign(t *testing.T) {
	store := NewStore(t.TempDir())

	record, err := store.Merge([]api.CreatedCall{
		created("c1", "+15550000001"),
		created("c2", "+15550000002"),
	}, "agent_1", "leads.csv")
	require.NoError(t, err)

	assert.Contains(t, record.CampaignID, "campaign_")
	assert.Equal(t, "leads.csv", record.SourceIdentity)
	assert.Equal(t, "agent_1", record.AgentID)
	assert.Equal(t, 2, record.TotalCalls)
	assert.Equal(t, []string{"c1", "c2"}, record.CallIDs)
	assert.Equal(t, "+15550000001", record.CallMapping["c1"].Endpoint)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestMergeAppendsToExistingSource(t *testing.T) {
	store := NewStore(t.TempDir())

	first, err := store.Merge([]api.CreatedCall{created("c1", "+15550000001")}, "agent_1", "leads.csv")
	require.NoError(t, err)

	second, err := store.Merge([]api.CreatedCall{
		created("c2", "+15550000002"),
		created("c3", "+15550000003"),
	}, "agent_1", "leads.csv")
	require.NoError(t, err)

	assert.Equal(t, first.CampaignID, second.CampaignID)
	assert.Equal(t, 3, second.TotalCalls)
	assert.Equal(t, []string{"c1", "c2", "c3"}, second.CallIDs)
}

func TestMergeDoesNotDuplicateCallIDs(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Merge([]api.CreatedCall{created("c1", "+15550000001")}, "agent_1", "leads.csv")
	require.NoError(t, err)

	record, err := store.Merge([]api.CreatedCall{created("c1", "+1555-updated")}, "agent_1", "leads.csv")
	require.NoError(t, err)

	assert.Equal(t, 1, record.TotalCalls)
	assert.Equal(t, []string{"c1"}, record.CallIDs)
	assert.Equal(t, "+1555-updated", record.CallMapping["c1"].Endpoint)
}

func TestDistinctSourcesGetDistinctCampaigns(t *testing.T) {
	store := NewStore(t.TempDir())

	a, err := store.Merge([]api.CreatedCall{created("c1", "+15550000001")}, "agent_1", "leads.csv")
	require.NoError(t, err)
	b, err := store.Merge([]api.CreatedCall{created("c2", "+15550000002")}, "agent_1", "followups.csv")
	require.NoError(t, err)

	assert.NotEqual(t, a.CampaignID, b.CampaignID)

	records, err := store.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCampaignIDUniqueWithinClockTick(t *testing.T) {
	store := NewStore(t.TempDir())

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		record, err := store.Merge(
			[]api.CreatedCall{created("c1", "+15550000001")},
			"agent_1",
			filepath.Join("source", string(rune('a'+i))),
		)
		require.NoError(t, err)
		assert.False(t, seen[record.CampaignID], "duplicate id %s", record.CampaignID)
		seen[record.CampaignID] = true
	}
}

func TestLatestPointer(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Latest()
	assert.ErrorContains(t, err, "no campaigns recorded yet")

	_, err = store.Merge([]api.CreatedCall{created("c1", "+15550000001")}, "agent_1", "first.csv")
	require.NoError(t, err)
	second, err := store.Merge([]api.CreatedCall{created("c2", "+15550000002")}, "agent_1", "second.csv")
	require.NoError(t, err)

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, second.CampaignID, latest.CampaignID)

	fetched, err := store.Get(second.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, "second.csv", fetched.SourceIdentity)
}

func TestEnrolledEndpoints(t *testing.T) {
	store := NewStore(t.TempDir())

	endpoints, err := store.EnrolledEndpoints("leads.csv")
	require.NoError(t, err)
	assert.Empty(t, endpoints)

	_, err = store.Merge([]api.CreatedCall{
		created("c1", "+15550000001"),
		created("c2", "+15550000002"),
	}, "agent_1", "leads.csv")
	require.NoError(t, err)

	endpoints, err = store.EnrolledEndpoints("leads.csv")
	require.NoError(t, err)
	assert.Contains(t, endpoints, "+15550000001")
	assert.Contains(t, endpoints, "+15550000002")
	assert.Len(t, endpoints, 2)
}

func TestListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	_, err := store.Merge([]api.CreatedCall{created("c1", "+15550000001")}, "agent_1", "leads.csv")
	require.NoError(t, err)

	campaignDir := filepath.Join(dir, "campaigns")
	require.NoError(t, os.WriteFile(filepath.Join(campaignDir, "broken.json"), []byte("{not json"), 0o644))

	records, err := store.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
