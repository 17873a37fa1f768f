package template_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appconfd/appconfd/internal/template"
)

func TestS3Location_URI(t *testing.T) {
	loc := template.S3Location{Bucket: "config-bucket", Key: "myApp/content.json"}
	assert.Equal(t, "s3://config-bucket/myApp/content.json", loc.URI())
}

func TestOversizedContent(t *testing.T) {
	tpl, err := template.Parse([]byte(sampleTemplate))
	require.NoError(t, err)

	assert.Empty(t, tpl.OversizedContent())

	tpl.Resources["HostedVersion"].Properties["Content"] = strings.Repeat("x", template.MaxInlineContentBytes+1)

	assert.Equal(t, []string{"HostedVersion"}, tpl.OversizedContent())
}

func TestOffloadContent(t *testing.T) {
	tpl, err := template.Parse([]byte(sampleTemplate))
	require.NoError(t, err)

	tpl.Resources["HostedVersion"].Properties["Content"] = strings.Repeat("x", template.MaxInlineContentBytes+1)

	err = tpl.OffloadContent("HostedVersion", template.S3Location{
		Bucket: "config-bucket",
		Key:    "myApp/content.json",
	})
	require.NoError(t, err)

	// offloaded content passes validation regardless of its size
	assert.Empty(t, tpl.Validate())
	assert.Empty(t, tpl.OversizedContent())

	content, ok := tpl.Resources["HostedVersion"].Properties["Content"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"Fn::Transform": map[string]any{
			"Name": "AWS::Include",
			"Parameters": map[string]any{
				"Location": "s3://config-bucket/myApp/content.json",
			},
		},
	}, content)
}

func TestOffloadContent_WrongResource(t *testing.T) {
	tpl, err := template.Parse([]byte(sampleTemplate))
	require.NoError(t, err)

	err = tpl.OffloadContent("Application", template.S3Location{Bucket: "b", Key: "k"})
	assert.Error(t, err)

	err = tpl.OffloadContent("Missing", template.S3Location{Bucket: "b", Key: "k"})
	assert.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	tpl, err := template.Parse([]byte(sampleTemplate))
	require.NoError(t, err)

	require.NoError(t, tpl.OffloadContent("HostedVersion", template.S3Location{
		Bucket: "config-bucket",
		Key:    "myApp/content.json",
	}))

	data, err := tpl.Encode()
	require.NoError(t, err)

	assert.Contains(t, string(data), "AWS::Include")
	assert.Contains(t, string(data), "s3://config-bucket/myApp/content.json")

	reparsed, err := template.Parse(data)
	require.NoError(t, err)

	assert.Empty(t, reparsed.Validate())
	assert.Equal(t, tpl.Resources["Deployment"].DependsOn, reparsed.Resources["Deployment"].DependsOn)
	assert.Equal(t, tpl.Resources["HostedVersion"].Properties, reparsed.Resources["HostedVersion"].Properties)
}
