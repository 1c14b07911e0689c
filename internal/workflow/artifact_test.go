package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/foreman/internal/checksum"
	"github.com/harrison/foreman/internal/models"
)

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRegisterCapabilityMapValid(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())
	content := `{"domains":[{"name":"auth","capabilities":["login","logout"]}]}`
	path := writeArtifact(t, "capability_map.json", content)

	a, err := RegisterArtifact(st, ArtifactCapabilityMap, path)
	require.NoError(t, err)
	assert.True(t, a.Valid)
	assert.Nil(t, a.Error)
	assert.Equal(t, checksum.SumString(content), a.Checksum)
	assert.Same(t, a, st.Artifacts.CapabilityMap)
}

func TestRegisterCapabilityMapSchemaFailureIsRecorded(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())
	path := writeArtifact(t, "capability_map.json", `{"domains":[]}`)

	a, err := RegisterArtifact(st, ArtifactCapabilityMap, path)
	require.NoError(t, err)
	assert.False(t, a.Valid)
	require.NotNil(t, a.Error)
	assert.Contains(t, *a.Error, path)
	assert.Contains(t, *a.Error, "at least one domain")
}

func TestRegisterPhysicalMap(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())

	bad := writeArtifact(t, "physical_map.json", `{"components":[{"name":"core","files":[]}]}`)
	a, err := RegisterArtifact(st, ArtifactPhysicalMap, bad)
	require.NoError(t, err)
	assert.False(t, a.Valid)
	assert.Contains(t, *a.Error, "files must be non-empty")

	good := writeArtifact(t, "physical_map.json", `{"components":[{"name":"core","files":["core.go"]}]}`)
	a, err = RegisterArtifact(st, ArtifactPhysicalMap, good)
	require.NoError(t, err)
	assert.True(t, a.Valid)
}

func TestRegisterMissingFileErrors(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())
	_, err := RegisterArtifact(st, ArtifactCapabilityMap, filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestRegisterNotJSONRecordedInvalid(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())
	path := writeArtifact(t, "capability_map.json", "not json at all")
	a, err := RegisterArtifact(st, ArtifactCapabilityMap, path)
	require.NoError(t, err)
	assert.False(t, a.Valid)
	assert.Contains(t, *a.Error, "not valid JSON")
}

func TestParseArtifactKind(t *testing.T) {
	_, err := ParseArtifactKind("blueprint")
	assert.Error(t, err)
	kind, err := ParseArtifactKind("physical_map")
	require.NoError(t, err)
	assert.Equal(t, ArtifactPhysicalMap, kind)
}

func TestPhaseExclusionsFromCapabilityMap(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())
	content := `{
		"domains":[{"name":"auth","capabilities":["login"]}],
		"phase_exclusions":{"2":["metrics","dashboard"]}
	}`
	path := writeArtifact(t, "capability_map.json", content)
	_, err := RegisterArtifact(st, ArtifactCapabilityMap, path)
	require.NoError(t, err)

	excl := PhaseExclusions(st)
	assert.Equal(t, []string{"metrics", "dashboard"}, excl["2"])
}

func TestRecordSpecReviewValidation(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())
	assert.Error(t, RecordSpecReview(st, -1, 0))
	assert.Error(t, RecordSpecReview(st, 2, 3))

	require.NoError(t, RecordSpecReview(st, 4, 1))
	assert.Equal(t, 4, st.Artifacts.SpecReview.Total)
	assert.Equal(t, 1, st.Artifacts.SpecReview.CriticalOpen)
}

func TestRecordPlanValidation(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())
	RecordPlanValidation(st, models.PlanBlocked, "gaps", []string{"t9 missing"})
	tv := st.Artifacts.TaskValidation
	require.NotNil(t, tv)
	assert.False(t, tv.Valid)
	assert.Equal(t, []string{"t9 missing"}, tv.Issues)

	RecordPlanValidation(st, models.PlanReady, "all good", nil)
	assert.True(t, st.Artifacts.TaskValidation.Valid)
}
