package okapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

func TestQueryParamsToValues(t *testing.T) {
	t.Parallel()

	t.Run("full set", func(t *testing.T) {
		t.Parallel()

		params := okapi.NewQueryParams().
			WithLabelSelector("env=prod,tier!=cache").
			WithFieldSelector("status.phase=Running").
			WithResourceVersion("1042").
			WithWatch().
			WithLimit(50).
			WithContinue("tok").
			WithTimeout(30).
			WithExtra("pretty", "true")

		values := params.ToValues()
		assert.Equal(t, "env=prod,tier!=cache", values.Get("labelSelector"))
		assert.Equal(t, "status.phase=Running", values.Get("fieldSelector"))
		assert.Equal(t, "1042", values.Get("resourceVersion"))
		assert.Equal(t, "true", values.Get("watch"))
		assert.Equal(t, "50", values.Get("limit"))
		assert.Equal(t, "tok", values.Get("continue"))
		assert.Equal(t, "30", values.Get("timeoutSeconds"))
		assert.Equal(t, "true", values.Get("pretty"))
	})

	t.Run("zero values omitted", func(t *testing.T) {
		t.Parallel()

		values := okapi.NewQueryParams().ToValues()
		assert.Empty(t, values)
	})

	t.Run("nil receiver", func(t *testing.T) {
		t.Parallel()

		var params *okapi.QueryParams

		values := params.ToValues()
		assert.NotNil(t, values)
		assert.Empty(t, values)
	})

	t.Run("extra values joined with commas", func(t *testing.T) {
		t.Parallel()

		params := okapi.NewQueryParams().
			WithExtra("fields", "metadata.name").
			WithExtra("fields", "metadata.namespace")

		assert.Equal(t, "metadata.name,metadata.namespace", params.ToValues().Get("fields"))
	})
}
