package listings

import (
	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

// PublicView is what buyers and anonymous clients see of a listing. The
// style code, reservation and buyer details stay private.
type PublicView struct {
	ID          string               `json:"id"`
	Images      map[string]string    `json:"images"`
	Price       int64                `json:"price"`
	Size        string               `json:"size"`
	Status      domain.ListingStatus `json:"status"`
	ProductID   int64                `json:"product_id"`
	ProductName string               `json:"product_name"`
}

func Public(l *domain.Listing) PublicView {
	return PublicView{
		ID:          l.ID,
		Images:      l.Images,
		Price:       l.Price,
		Size:        l.Size,
		Status:      l.Status,
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
	}
}

// View picks the representation of l for the actor: admins get the full
// listing.
func View(actor authz.Actor, l *domain.Listing) any {
	if actor.IsAdmin() {
		return l
	}
	return Public(l)
}

func Views(actor authz.Actor, ls []domain.Listing) any {
	if actor.IsAdmin() {
		return ls
	}
	out := make([]PublicView, len(ls))
	for i := range ls {
		out[i] = Public(&ls[i])
	}
	return out
}
