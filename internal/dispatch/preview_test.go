package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/kirimsurat/internal/dispatch"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
)

func TestRenderPreview(t *testing.T) {
	set := recipient.NewSet(
		recipient.NewRow([]string{"Email", "Name"}, []interface{}{"ann@example.com", "Ann"}),
		recipient.NewRow([]string{"Email", "Name"}, []interface{}{"bogus", "Bob"}),
	)

	tpl := dispatch.Template{
		Subject: "Hi {Name}",
		Body:    "Order {OrderID} for {Name} {Coupon}",
		Format:  mailmsg.FormatPlain,
	}

	t.Run("renders the chosen row", func(t *testing.T) {
		p, err := dispatch.RenderPreview(set, 0, tpl, "")
		require.NoError(t, err)

		assert.Equal(t, "ann@example.com", p.Address)
		assert.True(t, p.ValidAddress)
		assert.Equal(t, "Hi Ann", p.Subject)
		assert.Equal(t, "Order {OrderID} for Ann {Coupon}", p.Body)
		assert.Equal(t, []string{"{OrderID}", "{Coupon}"}, p.Unknown)
	})

	t.Run("flags invalid address", func(t *testing.T) {
		p, err := dispatch.RenderPreview(set, 1, tpl, "Email")
		require.NoError(t, err)
		assert.False(t, p.ValidAddress)
		assert.Equal(t, "Hi Bob", p.Subject)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := dispatch.RenderPreview(set, 2, tpl, "")
		assert.Error(t, err)
	})

	t.Run("nil set", func(t *testing.T) {
		_, err := dispatch.RenderPreview(nil, 0, tpl, "")
		assert.Error(t, err)
	})
}
