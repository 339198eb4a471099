package cart

import (
	"strings"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/google/uuid"
)

// CustomLinePrefix marks synthetic line ids for ad-hoc items.
const CustomLinePrefix = "custom-"

// SnapshotFromProduct freezes a catalog product into the shape cart lines carry.
func SnapshotFromProduct(p *models.Product) *models.ProductSnapshot {
	if p == nil {
		return nil
	}
	return &models.ProductSnapshot{
		Name:      strings.TrimSpace(p.Name),
		UnitPrice: p.Price,
		ImageRef:  p.ImageURL,
		Category:  p.Category,
	}
}

// LineFromProduct builds a cart line keyed by the product id.
func LineFromProduct(p *models.Product, quantity int) models.CartLine {
	return models.CartLine{
		ID:       p.ID.String(),
		Product:  SnapshotFromProduct(p),
		Quantity: quantity,
	}
}

// CustomLine builds a line for an item that is not in the catalog, such as a
// custom cake. Each call gets a fresh synthetic id.
func CustomLine(req models.AddCustomItemRequest) models.CartLine {
	return models.CartLine{
		ID: CustomLinePrefix + uuid.NewString(),
		Product: &models.ProductSnapshot{
			Name:      strings.TrimSpace(req.Name),
			UnitPrice: req.Price,
			ImageRef:  req.ImageRef,
			Category:  req.Category,
			Notes:     req.Notes,
		},
		Quantity: req.Quantity,
	}
}
