package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/vanshmadan/gke-connect/internal/models"
)

func sampleTopology() []models.ResourceNode {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	podA := models.NewResourceNode(models.KindPod, "web-a", "Running", created)
	podA.PersistentVolumeClaims = []string{"data"}
	podB := models.NewResourceNode(models.KindPod, "web-b", "Pending", created)

	deploy := models.NewResourceNode(models.KindDeployment, "web", "Running", created)
	deploy.Associated = []models.ResourceNode{podA, podB}

	svc := models.NewResourceNode(models.KindService, "web", "Active", created)
	svc.ClusterIP = "10.0.0.10"
	svc.Ports = []string{"80/TCP"}
	svc.Category = "frontend"
	svc.Associated = []models.ResourceNode{deploy}

	db := models.NewResourceNode(models.KindStatefulSet, "db", "Running", created)
	db.Category = "database"

	return []models.ResourceNode{svc, db}
}

func TestRenderTree(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTree, sampleTopology()))

	want := "Service/web (Active) [frontend] 10.0.0.10 80/TCP\n" +
		"└── Deployment/web (Running)\n" +
		"    ├── Pod/web-a (Running) pvc=data\n" +
		"    └── Pod/web-b (Pending)\n" +
		"StatefulSet/db (Running) [database]\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderTree_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTree, nil))
	assert.Equal(t, "No resources found.\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatJSON, sampleTopology()))

	var got models.EnvironmentResources
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Resources, 2)
	assert.Equal(t, "frontend", got.Resources[0].Category)
	assert.Equal(t, "web-a", got.Resources[0].Associated[0].Associated[0].Name)

	buf.Reset()
	require.NoError(t, render(&buf, formatJSON, nil))
	assert.JSONEq(t, `{"resources":[]}`, buf.String())
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatYAML, sampleTopology()))

	assert.Contains(t, buf.String(), "resources:\n")
	assert.Contains(t, buf.String(), "kind: StatefulSet")

	var got models.EnvironmentResources
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Resources, 2)
	assert.Equal(t, []string{"80/TCP"}, got.Resources[0].Ports)
}

func TestRenderUnknownFormat(t *testing.T) {
	assert.Error(t, render(&bytes.Buffer{}, "xml", nil))
}

func TestRenderUpdate_JSONIsStreamMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderUpdate(&buf, formatJSON, nil))
	assert.Equal(t, "{\"type\":\"update\",\"resources\":[]}\n", buf.String())
}
