package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "Nombre,WhatsApp,Empresa\nAna,555-111-2222,Acme\nLuis,123,Initech\nMarta,(11) 98765-4321,Acme\n"

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPreview_SuggestedMapping(t *testing.T) {
	out, err := run(t, writeSample(t), "--template", "Hola {{nombre}} de {{Empresa}}")
	require.NoError(t, err)

	assert.Contains(t, out, `suggested name="Nombre" phone="WhatsApp"`)
	assert.Contains(t, out, "2 prospects, 1 rows skipped")
	assert.Contains(t, out, "https://wa.me/5551112222?text=Hola%20Ana%20de%20Acme")
	assert.Contains(t, out, "https://wa.me/11987654321?text=Hola%20Marta%20de%20Acme")
}

func TestPreview_Limit(t *testing.T) {
	out, err := run(t, writeSample(t), "--limit", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "https://wa.me/5551112222")
	assert.NotContains(t, out, "https://wa.me/11987654321")
}

func TestPreview_Errors(t *testing.T) {
	path := writeSample(t)

	_, err := run(t, path, "--phone", "Telefono")
	assert.Error(t, err)

	_, err = run(t, path, "--sheet", "Hoja2")
	assert.Error(t, err)

	_, err = run(t, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = run(t)
	assert.Error(t, err)
}
