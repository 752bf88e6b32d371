package docker

import (
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerLabels(t *testing.T) {
	labels := containerLabels(CreateOpts{
		Image:  "node:22",
		Labels: map[string]string{LabelPrefix + "run_id": "abc"},
	})

	assert.Equal(t, "true", labels[LabelPrefix+"managed"])
	assert.Equal(t, "node:22", labels[LabelPrefix+"image"])
	assert.Equal(t, "abc", labels[LabelPrefix+"run_id"])
}

func TestContainerInfo(t *testing.T) {
	info := containerInfo(container.Summary{
		ID:      "c1",
		Names:   []string{"/installbench-abc"},
		Created: 1700000000,
		Labels:  map[string]string{OwnerLabel: "proc-1", LabelPrefix + "managed": "true"},
		State:   container.StateRunning,
	})

	assert.Equal(t, "c1", info.ContainerID)
	assert.Equal(t, "/installbench-abc", info.Name)
	assert.Equal(t, int64(1700000000), info.CreatedAt.Unix())
	assert.Equal(t, "proc-1", info.Owner)
	assert.True(t, info.Running)

	info = containerInfo(container.Summary{ID: "c2", State: container.StateExited})
	assert.Empty(t, info.Name)
	assert.Empty(t, info.Owner)
	assert.False(t, info.Running)
}

func TestHostConfig_Limits(t *testing.T) {
	hc := hostConfig(CreateOpts{
		CPULimit:    1.5,
		MemoryBytes: 1 << 30,
		PidsLimit:   256,
		NetworkMode: "none",
	})

	assert.Equal(t, int64(1.5e9), hc.Resources.NanoCPUs)
	assert.Equal(t, int64(1<<30), hc.Resources.Memory)
	require.NotNil(t, hc.Resources.PidsLimit)
	assert.Equal(t, int64(256), *hc.Resources.PidsLimit)
	assert.Equal(t, "none", string(hc.NetworkMode))
	assert.Contains(t, hc.SecurityOpt, "no-new-privileges")

	require.Len(t, hc.Mounts, 1)
	assert.Equal(t, mount.TypeTmpfs, hc.Mounts[0].Type)
	assert.Equal(t, "/tmp", hc.Mounts[0].Target)
}

func TestHostConfig_NoPidsLimit(t *testing.T) {
	hc := hostConfig(CreateOpts{})
	assert.Nil(t, hc.Resources.PidsLimit)
	assert.Empty(t, string(hc.NetworkMode))
}
