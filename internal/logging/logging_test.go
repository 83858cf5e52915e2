package logging

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/loggo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreOutput(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		_, _ = loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(os.Stderr, loggo.DefaultFormatter))
	})
}

func TestSetupWithFile(t *testing.T) {
	restoreOutput(t)
	path := filepath.Join(t.TempDir(), "vetsync.log")

	closer, err := Setup(Config{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)

	log.Printf("refresh of animals scope 3 done")
	loggo.GetLogger("vetsync.test").Warningf("hub subscriber slow")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "refresh of animals scope 3 done")
	assert.Contains(t, string(data), "hub subscriber slow")
}

func TestSetupWithoutFile(t *testing.T) {
	restoreOutput(t)

	closer, err := Setup(Config{})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	restoreOutput(t)

	_, err := Setup(Config{Level: "LOUD"})
	assert.Error(t, err)
}
