package businessflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/humanflow/app/dto"
	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/amirphl/humanflow/config"
	"github.com/amirphl/humanflow/models"
	testingutil "github.com/amirphl/humanflow/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type campaignFixture struct {
	store    *testingutil.MemorySessionStore
	sentSets *businessflow.MemorySentSetStore
	metrics  *countingMetrics
	flow     businessflow.CampaignFlow
	uploadID uint
}

func newCampaignFixture(t *testing.T, sink businessflow.StatusSink, logger *zap.Logger) *campaignFixture {
	store := testingutil.NewMemorySessionStore()
	store.SeedUser(ownerEmail)
	uploadID := seedUpload(t, store, ownerEmail, "leads.xlsx")

	sentSets := businessflow.NewMemorySentSetStore()
	metrics := &countingMetrics{}
	templates := businessflow.NewTemplateFlow(store, nil, &config.CacheConfig{}, messagingConfig(), logger)
	flow := businessflow.NewCampaignFlow(store, sentSets, templates, sink, statusConfig(), messagingConfig(), sessionConfig(), metrics, logger)

	return &campaignFixture{store: store, sentSets: sentSets, metrics: metrics, flow: flow, uploadID: uploadID}
}

func TestCampaignFlow_SendAndResume(t *testing.T) {
	ctx := context.Background()
	fx := newCampaignFixture(t, nil, zaptest.NewLogger(t))
	principal := businessflow.Principal{Email: ownerEmail}

	link, err := fx.flow.Send(ctx, principal, fx.uploadID, "row-0", nil)
	require.NoError(t, err)
	assert.Contains(t, link.URL, "https://wa.me/5551112222?text=Hola%20Ana%2C%20vi%20que%20en%20%7B%7Bempresa%7D%7D")
	assert.Equal(t, "Contactado", link.Contact.Estado)
	assert.True(t, link.Queued)
	assert.Equal(t, "Contactado", fx.store.StatusOf(fx.uploadID, "row-0"))
	assert.Equal(t, 1, fx.metrics.sent)

	view, err := fx.flow.Dashboard(ctx, principal, fx.uploadID, dto.DashboardQuery{View: "active"})
	require.NoError(t, err)
	require.Len(t, view.Contacts, 1)
	assert.Equal(t, "row-3", view.Contacts[0].ID)
	assert.Equal(t, string(businessflow.BadgePending), view.Contacts[0].Badge)
	assert.Equal(t, 3, view.Stats.Total)
	assert.Equal(t, 2, view.Stats.ContactedTotal)
	assert.Equal(t, 1, view.Stats.Pending)
	assert.Equal(t, 1, view.Stats.SessionSentCount)
	assert.Equal(t, []string{"row-0"}, view.SentIDs)
	require.NotNil(t, view.UploadID)

	resumed, err := fx.flow.Resume(ctx, principal, fx.uploadID)
	require.NoError(t, err)
	require.Len(t, resumed.Contacts, 3)
	assert.Equal(t, []string{"row-0", "row-1", "row-3"}, []string{resumed.Contacts[0].ID, resumed.Contacts[1].ID, resumed.Contacts[2].ID})
	assert.Equal(t, "Contactado", resumed.Contacts[0].Estado)
	assert.Equal(t, "Cliente", resumed.Contacts[1].Estado)
	assert.Equal(t, "Ana", resumed.Contacts[0].Nombre)
	assert.Equal(t, "Acme", resumed.Contacts[0].Extras["Empresa"])
	assert.Equal(t, []string{"row-0"}, resumed.SentIDs)
	assert.Equal(t, testingutil.SampleMapping(), resumed.Mapping)
}

func TestCampaignFlow_SendWithTemplateOverride(t *testing.T) {
	ctx := context.Background()
	fx := newCampaignFixture(t, nil, zaptest.NewLogger(t))

	link, err := fx.flow.Send(ctx, businessflow.Principal{Email: ownerEmail}, fx.uploadID, "row-3", &dto.SendRequest{Template: "Hola {{nombre}} de {{Empresa}}"})
	require.NoError(t, err)
	assert.Equal(t, "Hola Marta de Acme", link.Message)
	assert.Equal(t, "https://wa.me/11987654321?text=Hola%20Marta%20de%20Acme", link.URL)
}

func TestCampaignFlow_SendDispatchesToSink(t *testing.T) {
	ctx := context.Background()
	sink := &capturingSink{accept: true}
	fx := newCampaignFixture(t, sink, zaptest.NewLogger(t))

	link, err := fx.flow.Send(ctx, businessflow.Principal{Email: ownerEmail}, fx.uploadID, "row-0", nil)
	require.NoError(t, err)
	assert.True(t, link.Queued)

	require.Len(t, sink.updates, 1)
	assert.Equal(t, businessflow.StatusUpdate{UploadID: fx.uploadID, ContactID: "row-0", Status: "Contactado", UserEmail: ownerEmail}, sink.updates[0])
	assert.Equal(t, 0, fx.store.StatusUpdateCount())

	sink.accept = false
	link, err = fx.flow.Send(ctx, businessflow.Principal{Email: ownerEmail}, fx.uploadID, "row-3", nil)
	require.NoError(t, err)
	assert.False(t, link.Queued)
}

func TestCampaignFlow_StatusFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	fx := newCampaignFixture(t, nil, zap.New(core))
	fx.store.FailStatusUpdate = errors.New("connection refused")

	link, err := fx.flow.Send(ctx, businessflow.Principal{Email: ownerEmail}, fx.uploadID, "row-0", nil)
	require.NoError(t, err)
	assert.False(t, link.Queued)
	assert.Equal(t, "Contactado", link.Contact.Estado)
	assert.Equal(t, 1, fx.metrics.statusUpdateFailed)
	assert.Equal(t, 1, logs.FilterMessage("Contact status update failed").Len())

	// the sent set still hides the contact from the active view
	view, err := fx.flow.Dashboard(ctx, businessflow.Principal{Email: ownerEmail}, fx.uploadID, dto.DashboardQuery{})
	require.NoError(t, err)
	for _, c := range view.Contacts {
		assert.NotEqual(t, "row-0", c.ID)
	}
}

func TestCampaignFlow_ResetSent(t *testing.T) {
	ctx := context.Background()
	fx := newCampaignFixture(t, nil, zaptest.NewLogger(t))
	principal := businessflow.Principal{Email: ownerEmail}

	_, err := fx.flow.Send(ctx, principal, fx.uploadID, "row-3", &dto.SendRequest{Template: "hola"})
	require.NoError(t, err)

	require.NoError(t, fx.flow.ResetSent(ctx, principal, fx.uploadID))

	view, err := fx.flow.Dashboard(ctx, principal, fx.uploadID, dto.DashboardQuery{View: "sent"})
	require.NoError(t, err)
	assert.Empty(t, view.SentIDs)
	assert.Equal(t, 0, view.Stats.SessionSentCount)
	// the persisted status keeps it closed
	assert.Len(t, view.Contacts, 2)
}

func TestCampaignFlow_Ownership(t *testing.T) {
	ctx := context.Background()
	fx := newCampaignFixture(t, nil, zaptest.NewLogger(t))
	eve := businessflow.Principal{Email: "eve@example.com"}

	_, err := fx.flow.Resume(ctx, eve, fx.uploadID)
	assert.True(t, businessflow.IsUploadAccessDenied(err))
	assert.Equal(t, "UPLOAD_NOT_FOUND", businessCode(t, err))

	_, err = fx.flow.Send(ctx, eve, fx.uploadID, "row-0", nil)
	assert.Error(t, err)
	assert.Equal(t, "Nuevo", fx.store.StatusOf(fx.uploadID, "row-0"))

	assert.Error(t, fx.flow.ResetSent(ctx, eve, fx.uploadID))

	_, err = fx.flow.Resume(ctx, businessflow.Principal{Email: ownerEmail}, 999)
	assert.True(t, businessflow.IsUploadNotFound(err))

	_, err = fx.flow.Send(ctx, businessflow.Principal{Email: ownerEmail}, fx.uploadID, "row-2", nil)
	assert.True(t, businessflow.IsContactNotFound(err))
}

func TestCampaignFlow_DegradedSession(t *testing.T) {
	ctx := context.Background()
	fx := newCampaignFixture(t, nil, zaptest.NewLogger(t))
	degraded := businessflow.Principal{Email: ownerEmail, Degraded: true}

	_, err := fx.flow.ListUploads(ctx, degraded)
	assert.True(t, businessflow.IsPersistenceDisabled(err))
	assert.Equal(t, "PERSISTENCE_UNAVAILABLE", businessCode(t, err))

	_, err = fx.flow.Send(ctx, degraded, fx.uploadID, "row-0", nil)
	assert.True(t, businessflow.IsPersistenceDisabled(err))

	link, err := fx.flow.BuildLink(ctx, degraded, &dto.BuildLinkRequest{
		Contact: models.Prospect{ID: "row-0", Nombre: "Ana", Telefono: "5551112222", Estado: "Nuevo"},
	})
	require.NoError(t, err)
	assert.Contains(t, link.Message, "Hola Ana")
}

func TestCampaignFlow_ListUploads(t *testing.T) {
	ctx := context.Background()
	fx := newCampaignFixture(t, nil, zaptest.NewLogger(t))
	second := seedUpload(t, fx.store, ownerEmail, "second.csv")

	resp, err := fx.flow.ListUploads(ctx, businessflow.Principal{Email: ownerEmail})
	require.NoError(t, err)
	require.Len(t, resp.Uploads, 2)
	assert.Equal(t, second, resp.Uploads[0].ID)
	assert.Equal(t, int64(3), resp.Uploads[0].TotalContacts)
	assert.Equal(t, int64(1), resp.Uploads[0].ContactedCount)

	empty, err := fx.flow.ListUploads(ctx, businessflow.Principal{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Uploads)
	assert.Empty(t, empty.Uploads)
}

func TestCampaignFlow_Compute(t *testing.T) {
	ctx := context.Background()
	fx := newCampaignFixture(t, nil, zaptest.NewLogger(t))

	req := &dto.DashboardComputeRequest{
		Contacts: []models.Prospect{
			{ID: "row-0", Nombre: "Ana", Telefono: "5551112222", Estado: "Contactado", Extras: map[string]string{"Empresa": "Acme"}},
			{ID: "row-1", Nombre: "Luis", Telefono: "5553334444", Estado: "Nuevo", Extras: map[string]string{"Empresa": "Acme"}},
			{ID: "row-2", Nombre: "Eva", Telefono: "5556667777", Estado: "Nuevo", Extras: map[string]string{"Empresa": "Other"}},
		},
		Filters:           map[string]string{"Empresa": "Acme"},
		View:              "active",
		FilterableColumns: []string{"Empresa"},
	}

	resp, err := fx.flow.Compute(ctx, businessflow.Principal{Email: "lead@example.com", Degraded: true}, req)
	require.NoError(t, err)
	require.Len(t, resp.Contacts, 1)
	assert.Equal(t, "row-1", resp.Contacts[0].ID)
	assert.Equal(t, 2, resp.Stats.Total)
	assert.Equal(t, 1, resp.Stats.ContactedTotal)
	assert.Equal(t, 3, resp.Stats.TotalDatabase)
	assert.Equal(t, []string{"Acme", "Other"}, resp.FilterOptions["Empresa"])

	req.SentIDs = []string{"row-1"}
	resp, err = fx.flow.Compute(ctx, businessflow.Principal{Email: ownerEmail}, req)
	require.NoError(t, err)
	assert.Empty(t, resp.Contacts)
	assert.Equal(t, 0, resp.Stats.Pending)
}

func TestCampaignFlow_Export(t *testing.T) {
	ctx := context.Background()
	fx := newCampaignFixture(t, nil, zaptest.NewLogger(t))
	principal := businessflow.Principal{Email: ownerEmail}

	_, err := fx.flow.Send(ctx, principal, fx.uploadID, "row-0", nil)
	require.NoError(t, err)

	buf, filename, err := fx.flow.Export(ctx, principal, fx.uploadID)
	require.NoError(t, err)
	assert.Equal(t, "leads-humanflow.xlsx", filename)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Nombre", "WhatsApp", "Estado", "Empresa"}, rows[0])
	assert.Equal(t, []string{"Ana", "5551112222", "Contactado", "Acme"}, rows[1])
}
