package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestCreateLogger(t *testing.T) {
	level := "info"
	log := NewLogrus(level, FormatText, os.Stdout)

	assert.Equal(t, log.level, level)
	assert.Equal(t, logrus.InfoLevel, log.root.GetLevel())
}

func TestCreateLoggerWhenInvalidLevelThenInfo(t *testing.T) {
	log := NewLogrus("loud", FormatText, os.Stdout)
	assert.Equal(t, logrus.InfoLevel, log.root.GetLevel())
}

func TestGetLogger(t *testing.T) {
	log := NewLogrus("debug", FormatText, os.Stdout)
	logger := log.Get("Testing")
	assert.Equal(t, logger.Logger.Out, os.Stdout)
	assert.Equal(t, "Testing", logger.Data["Context"])
}

func TestGetLoggerWhenJSONFormatThenWritesJSON(t *testing.T) {
	var out bytes.Buffer
	log := NewLogrus("info", FormatJSON, &out)
	log.Get("coordinator").Info("threshold updated")

	assert.Contains(t, out.String(), `"Context":"coordinator"`)
	assert.Contains(t, out.String(), `"msg":"threshold updated"`)
}
