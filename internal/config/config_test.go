package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesDocumentedZeroConfigValues(t *testing.T) {
	c := Default()
	assert.Equal(t, ExpertTriggerScore, c.ExpertTriggerMode)
	assert.Equal(t, 5, c.ExpertScoreThreshold)
	assert.Equal(t, PlannerActivationComplexOnly, c.PlannerActivationMode)
	assert.Equal(t, 2, c.PlannerRequiredGateCount)
	assert.Equal(t, 180000, c.CallTimeoutMs)
	assert.Equal(t, 190, c.APIRequestTimeoutSec)
	assert.Equal(t, 6, c.JoinCountCap)
	assert.True(t, c.TranslateKoToEn)
	assert.False(t, c.DefaultScopeAutofillEnabled)
}

func TestLoadOverlaysStringIntAndBoolEnvVars(t *testing.T) {
	t.Setenv("ENGINEER_MODEL", "custom-model")
	t.Setenv("ROW_CAP", "250")
	t.Setenv("SQL_AUTO_REPAIR_ENABLED", "false")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "custom-model", c.EngineerModel)
	assert.Equal(t, 250, c.RowCap)
	assert.False(t, c.SQLAutoRepairEnabled)
}

func TestLoadOverlaysEnumStringFields(t *testing.T) {
	t.Setenv("EXPERT_TRIGGER_MODE", "always")
	t.Setenv("PLANNER_ACTIVATION_MODE", "off")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ExpertTriggerAlways, c.ExpertTriggerMode)
	assert.Equal(t, PlannerActivationOff, c.PlannerActivationMode)
}

func TestLoadIgnoresUnparsableIntAndBoolEnvVars(t *testing.T) {
	t.Setenv("ROW_CAP", "not-a-number")
	t.Setenv("SQL_AUTO_REPAIR_ENABLED", "not-a-bool")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().RowCap, c.RowCap)
	assert.Equal(t, Default().SQLAutoRepairEnabled, c.SQLAutoRepairEnabled)
}

func TestLoadFloorsCallTimeoutMsAt180000(t *testing.T) {
	t.Setenv("CALL_TIMEOUT_MS", "5000")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 180000, c.CallTimeoutMs)
}

func TestLoadFloorsAPIRequestTimeoutSecAt190(t *testing.T) {
	t.Setenv("API_REQUEST_TIMEOUT_SEC", "30")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 190, c.APIRequestTimeoutSec)
}

func TestLoadAllowsCallTimeoutMsAboveFloor(t *testing.T) {
	t.Setenv("CALL_TIMEOUT_MS", "240000")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 240000, c.CallTimeoutMs)
}

func TestTimeoutHelpersConvertToDuration(t *testing.T) {
	c := Default()
	assert.Equal(t, time.Duration(c.LLMTimeoutSec)*time.Second, c.LLMTimeout())
	assert.Equal(t, 180*time.Second, c.CallTimeout())
	assert.Equal(t, 190*time.Second, c.APIRequestTimeout())
	assert.Equal(t, 2000*time.Millisecond, c.MongoTimeout())
}
