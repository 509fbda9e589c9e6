package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loadResponse struct {
	Scenario ScenarioDTO `json:"scenario"`
	WeekFrom string      `json:"week_from"`
	WeekTo   string      `json:"week_to"`
}

func TestListScenarios(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(scenarios))
}

func TestLoadScenario_EachLoads(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": s.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			res := decodeBody[loadResponse](t, rec)
			assert.Equal(t, s.ID, res.Scenario.ID)

			rec = env.do(t, http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, s.ID, decodeBody[ScenarioDTO](t, rec).ID)

			rec = env.do(t, http.MethodGet, "/api/employees", nil)
			assert.NotEmpty(t, decodeBody[[]EmployeeDTO](t, rec))
		})
	}
}

func TestLoadScenario_RegularWeek(t *testing.T) {
	// GIVEN: the regular week is loaded
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "regular-week"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[loadResponse](t, rec)

	// WHEN: the week is listed
	rec = env.do(t, http.MethodGet, "/api/employees/ana.torres/attendance?from="+res.WeekFrom+"&to="+res.WeekTo, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]RecordDTO](t, rec)

	// THEN: the long Tuesday spills into both surcharge tiers
	require.Len(t, list, 6)
	tuesday := list[1]
	assert.Equal(t, "COMPLETO", tuesday.Status)
	assert.Equal(t, 8.0, tuesday.Hours.Regular)
	assert.Equal(t, 2.0, tuesday.Hours.Surcharge25)
	assert.Equal(t, 1.0, tuesday.Hours.Supplementary50)

	// AND: Friday is left open, Saturday is all extraordinary
	assert.Equal(t, "PENDIENTE", list[4].Status)
	assert.Equal(t, 5.0, list[5].Hours.Extraordinary100)
}

func TestLoadScenario_ReplacesPreviousData(t *testing.T) {
	env := newTestEnv(t)
	env.employee(t, "emp-1", "regular")

	rec := env.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "night-shift"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/employees/emp-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoadScenario_Unknown(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetDatabase(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "anomalies"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/employees", nil)
	assert.Empty(t, decodeBody[[]EmployeeDTO](t, rec))
	rec = env.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())
}
