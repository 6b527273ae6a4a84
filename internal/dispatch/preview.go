package dispatch

import (
	"fmt"

	"github.com/yusufsyaifudin/kirimsurat/pkg/mailtmpl"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
)

// Preview is the rendered template for one recipient, computed without touching the network.
type Preview struct {
	Index        int      `json:"index"`
	Address      string   `json:"address"`
	ValidAddress bool     `json:"valid_address"`
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	Unknown      []string `json:"unknown_placeholders"`
}

// RenderPreview renders tpl with row index of set, the same way Run does.
func RenderPreview(set *recipient.Set, index int, tpl Template, addressColumn string) (Preview, error) {
	if set == nil {
		return Preview{}, fmt.Errorf("recipient set is nil")
	}

	row, err := set.Row(index)
	if err != nil {
		return Preview{}, err
	}

	if addressColumn == "" {
		addressColumn = recipient.DefaultAddressColumn
	}

	address, ok := row.Address(addressColumn)
	renderer := mailtmpl.NewRenderer(row)

	unknown := mailtmpl.Unknown(tpl.Subject, set.Columns())
	for _, p := range mailtmpl.Unknown(tpl.Body, set.Columns()) {
		if !contains(unknown, p) {
			unknown = append(unknown, p)
		}
	}

	return Preview{
		Index:        index,
		Address:      address,
		ValidAddress: ok && recipient.IsPlausibleAddress(address),
		Subject:      renderer.Replace(tpl.Subject),
		Body:         renderer.Replace(tpl.Body),
		Unknown:      unknown,
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
