package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents() []*Event {
	orgType := "company"
	orgID := int64(7)
	actor := int64(100)
	return []*Event{
		{
			ID:           1,
			Timestamp:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			EventType:    EventTypeRoleCreate,
			Status:       StatusSuccess,
			ActorID:      &actor,
			ResourceType: ResourceTypeRole,
			ResourceID:   "abc-123",
			Message:      "created role Editor",
		},
		{
			ID:        2,
			Timestamp: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
			EventType: EventTypeMemberAdd,
			Status:    StatusSuccess,
			ActorID:   &actor,
			OrgType:   &orgType,
			OrgID:     &orgID,
		},
	}
}

func TestExportJSON(t *testing.T) {
	data, err := Export(sampleEvents(), ExportFormatJSON)
	require.NoError(t, err)

	var decoded []*Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, EventTypeRoleCreate, decoded[0].EventType)
}

func TestExportNDJSON(t *testing.T) {
	data, err := Export(sampleEvents(), ExportFormatNDJSON)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var event Event
		require.NoError(t, json.Unmarshal([]byte(line), &event))
	}
}

func TestExportCSV(t *testing.T) {
	data, err := Export(sampleEvents(), ExportFormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "header plus two rows")
	assert.Contains(t, lines[0], "EventType")
	assert.Contains(t, lines[1], "role.create")
	assert.Contains(t, lines[2], "company")
}

func TestExportUnknownFormatFallsBackToJSON(t *testing.T) {
	data, err := Export(sampleEvents(), ExportFormat("xml"))
	require.NoError(t, err)

	var decoded []*Event
	assert.NoError(t, json.Unmarshal(data, &decoded))
}
