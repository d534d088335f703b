package businessflow_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"sync"
	"testing"
	"time"

	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/amirphl/humanflow/config"
	testingutil "github.com/amirphl/humanflow/testing"
	"github.com/stretchr/testify/require"
)

const ownerEmail = "ana@example.com"

func importConfig() config.ImportConfig {
	return config.ImportConfig{
		MinPhoneDigits: config.DefaultMinPhoneDigits,
		NameKeywords:   config.DefaultNameKeywords,
		PhoneKeywords:  config.DefaultPhoneKeywords,
		DefaultName:    config.DefaultNameLabel,
		DefaultStatus:  config.DefaultStatusLabel,
		MaxFileSize:    1 << 20,
		WorkbookTTL:    30 * time.Minute,
	}
}

func statusConfig() config.StatusConfig {
	return config.StatusConfig{
		ClosedKeywords: config.DefaultClosedKeywords,
		Contacted:      config.DefaultContactedLabel,
	}
}

func messagingConfig() config.MessagingConfig {
	return config.MessagingConfig{BaseURL: config.DefaultMessagingURL, DefaultTemplate: config.DefaultTemplate}
}

func sessionConfig() config.SessionConfig {
	return config.SessionConfig{SaveBatchSize: 50, HistoryLimit: 5}
}

// sampleCSV renders the sample grid as a csv upload
func sampleCSV(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.WriteAll(testingutil.SampleGrid()))
	return buf.Bytes()
}

// seedUpload persists the extracted sample grid for owner and returns the upload id
func seedUpload(t *testing.T, store *testingutil.MemorySessionStore, owner, filename string) uint {
	t.Helper()
	ctx := context.Background()
	mapping := testingutil.SampleMapping()
	result := businessflow.ExtractContacts(testingutil.SampleGrid(), mapping, businessflow.ExtractOptions{
		MinPhoneDigits: 5,
		DefaultName:    config.DefaultNameLabel,
		DefaultStatus:  config.DefaultStatusLabel,
	})
	id, err := store.CreateUpload(ctx, owner, filename, "Sheet1", mapping)
	require.NoError(t, err)
	require.NoError(t, store.SaveContacts(ctx, id, owner, result.Contacts))
	return id
}

type countingMetrics struct {
	mu                 sync.Mutex
	imported           int
	skipped            int
	sent               int
	statusUpdateFailed int
}

func (m *countingMetrics) ContactsImported(n int) {
	m.mu.Lock()
	m.imported += n
	m.mu.Unlock()
}

func (m *countingMetrics) RowsSkipped(n int) {
	m.mu.Lock()
	m.skipped += n
	m.mu.Unlock()
}

func (m *countingMetrics) MessageSent() {
	m.mu.Lock()
	m.sent++
	m.mu.Unlock()
}

func (m *countingMetrics) StatusUpdateFailed() {
	m.mu.Lock()
	m.statusUpdateFailed++
	m.mu.Unlock()
}

type capturingSink struct {
	mu      sync.Mutex
	updates []businessflow.StatusUpdate
	accept  bool
}

func (s *capturingSink) Enqueue(u businessflow.StatusUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accept {
		return false
	}
	s.updates = append(s.updates, u)
	return true
}

type capturedMail struct {
	to   string
	code string
	ttl  time.Duration
}

type captureMailService struct {
	mu   sync.Mutex
	sent []capturedMail
	err  error
}

func (m *captureMailService) SendRecoveryCode(to, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, capturedMail{to: to, code: code, ttl: ttl})
	return nil
}

func (m *captureMailService) last() (capturedMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return capturedMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

func businessCode(t *testing.T, err error) string {
	t.Helper()
	var be *businessflow.BusinessError
	require.ErrorAs(t, err, &be)
	return be.Code
}
