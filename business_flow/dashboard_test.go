package businessflow

import (
	"testing"

	"github.com/amirphl/humanflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = StatusPolicy{ClosedKeywords: []string{"contactado", "éxito", "exito", "cliente", "ganado"}}

func prospect(id, estado string, extras map[string]string) models.Prospect {
	return models.Prospect{ID: id, Nombre: "N" + id, Telefono: "5551112222", Estado: estado, Extras: extras}
}

func TestDashboard_PartitionActive(t *testing.T) {
	d := NewDashboard(testPolicy)
	prospects := []models.Prospect{
		prospect("row-0", "Contactado", nil),
		prospect("row-1", "Nuevo", nil),
	}

	active := d.Partition(prospects, NewSentSet(), ViewActive)
	require.Len(t, active, 1)
	assert.Equal(t, "row-1", active[0].ID)

	sent := d.Partition(prospects, NewSentSet(), ViewSent)
	require.Len(t, sent, 1)
	assert.Equal(t, "row-0", sent[0].ID)

	stats := d.Stats(prospects, nil, NewSentSet())
	assert.Equal(t, 1, stats.ContactedTotal)
	assert.Equal(t, 50, stats.ProgressPercent)
}

func TestDashboard_ColumnFilters(t *testing.T) {
	d := NewDashboard(testPolicy)
	prospects := []models.Prospect{
		prospect("row-0", "Nuevo", map[string]string{"Empresa": "Acme"}),
		prospect("row-1", "Nuevo", map[string]string{"Empresa": "Acme"}),
		prospect("row-2", "Nuevo", map[string]string{"Empresa": "Other"}),
	}

	assert.Len(t, d.ApplyColumnFilters(prospects, map[string]string{"Empresa": "Acme"}), 2)
	assert.Len(t, d.ApplyColumnFilters(prospects, map[string]string{"Empresa": ""}), 3)
	assert.Len(t, d.ApplyColumnFilters(prospects, nil), 3)
	assert.Empty(t, d.ApplyColumnFilters(prospects, map[string]string{"Empresa": "acme"}))

	stats := d.Stats(prospects, map[string]string{"Empresa": "Acme"}, NewSentSet())
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 3, stats.TotalDatabase)
}

func TestDashboard_StatsPendingInvariant(t *testing.T) {
	d := NewDashboard(testPolicy)
	prospects := []models.Prospect{
		prospect("row-0", "Nuevo", map[string]string{"Ciudad": "Lima"}),
		prospect("row-1", "Éxito total", map[string]string{"Ciudad": "Lima"}),
		prospect("row-2", "Pendiente", map[string]string{"Ciudad": "Cusco"}),
		prospect("row-3", "Nuevo", map[string]string{"Ciudad": "Lima"}),
		prospect("row-4", "Ganado", map[string]string{"Ciudad": "Cusco"}),
	}
	sent := NewSentSet("row-0", "row-4", "row-99")

	cases := []map[string]string{
		nil,
		{"Ciudad": "Lima"},
		{"Ciudad": "Cusco"},
		{"Ciudad": "Arequipa"},
	}
	for _, filters := range cases {
		stats := d.Stats(prospects, filters, sent)
		assert.Equal(t, stats.Total-stats.ContactedTotal, stats.Pending)
		assert.Equal(t, len(prospects), stats.TotalDatabase)
		assert.Equal(t, len(sent), stats.SessionSentCount)
	}

	stats := d.Stats(prospects, nil, sent)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.ContactedTotal)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 3, stats.SessionSentCount)
	assert.Equal(t, 60, stats.ProgressPercent)

	empty := d.Stats(nil, nil, sent)
	assert.Zero(t, empty.ProgressPercent)
}

func TestDashboard_SessionSentCountIgnoresFilters(t *testing.T) {
	d := NewDashboard(testPolicy)
	prospects := []models.Prospect{
		prospect("row-0", "Nuevo", map[string]string{"Empresa": "Acme"}),
		prospect("row-1", "Nuevo", map[string]string{"Empresa": "Globex"}),
	}
	sent := NewSentSet("row-0", "row-1")

	stats := d.Stats(prospects, map[string]string{"Empresa": "Acme"}, sent)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ContactedTotal)
	assert.Equal(t, 2, stats.SessionSentCount)
}

func TestDashboard_SentSetMarksDone(t *testing.T) {
	d := NewDashboard(testPolicy)
	p := prospect("row-0", "Nuevo", nil)

	assert.False(t, d.IsDone(p, nil))
	assert.True(t, d.IsDone(p, NewSentSet("row-0")))
}

func TestDashboard_FilterOptions(t *testing.T) {
	d := NewDashboard(testPolicy)
	prospects := []models.Prospect{
		prospect("row-0", "Nuevo", map[string]string{"Ciudad": "Lima"}),
		prospect("row-1", "Nuevo", map[string]string{"Ciudad": " Cusco "}),
		prospect("row-2", "Nuevo", map[string]string{"Ciudad": "Lima"}),
		prospect("row-3", "Nuevo", map[string]string{"Ciudad": ""}),
	}

	options := d.FilterOptions(prospects, []string{"Ciudad", "Pais"})
	assert.Equal(t, []string{"Cusco", "Lima"}, options["Ciudad"])
	assert.Empty(t, options["Pais"])
}

func TestClassifyStatus(t *testing.T) {
	tests := map[string]StatusBadge{
		"Contactado":     BadgeContacted,
		"pendiente cita": BadgePending,
		"ÉXITO":          BadgeWon,
		"cliente":        BadgeWon,
		"Perdido":        BadgeLost,
		"no":             BadgeLost,
		"Nuevo":          BadgeNew,
		"":               BadgeNew,
	}
	for estado, want := range tests {
		assert.Equal(t, want, ClassifyStatus(estado), estado)
	}
}

func TestParseViewFilter(t *testing.T) {
	assert.Equal(t, ViewSent, ParseViewFilter(" SENT "))
	assert.Equal(t, ViewActive, ParseViewFilter("active"))
	assert.Equal(t, ViewActive, ParseViewFilter("bogus"))
}
