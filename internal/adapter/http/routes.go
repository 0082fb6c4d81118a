package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/circulation/internal/domain/request"
	"github.com/Strob0t/circulation/internal/middleware"
)

// Endpoint permissions, as granted by the gateway in X-Okapi-Permissions.
const (
	PermCheckOut      = "circulation.check-out-by-barcode.post"
	PermRenew         = "circulation.renew-by-barcode.post"
	PermRequestCreate = "circulation.requests.item.post"
	PermRequestMove   = "circulation.requests.item.move.post"
	PermQueueGet      = "circulation.requests.queue.collection.get"
	PermQueueReorder  = "circulation.requests.queue.reorder.collection.post"
)

// MountRoutes registers the circulation routes on the given chi router.
// With enforce set, each route requires its endpoint permission.
func MountRoutes(r chi.Router, h *Handlers, enforce bool) {
	perm := func(p string) func(http.Handler) http.Handler {
		if !enforce {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RequirePermission(p)
	}

	r.Route("/circulation", func(r chi.Router) {
		r.With(perm(PermCheckOut)).Post("/check-out-by-barcode", h.CheckOutByBarcode)
		r.With(perm(PermRenew)).Post("/renew-by-barcode", h.RenewByBarcode)

		r.Route("/requests", func(r chi.Router) {
			r.With(perm(PermRequestCreate)).Post("/", h.CreateRequest)
			r.With(perm(PermRequestMove)).Post("/{id}/move", h.MoveRequest)

			// Queues
			r.With(perm(PermQueueGet)).Get("/queue/item/{itemId}", h.GetQueue(request.ScopeItem, "itemId"))
			r.With(perm(PermQueueGet)).Get("/queue/instance/{instanceId}", h.GetQueue(request.ScopeInstance, "instanceId"))
			r.With(perm(PermQueueReorder)).Post("/queue/item/{itemId}/reorder", h.ReorderQueue(request.ScopeItem, "itemId"))
			r.With(perm(PermQueueReorder)).Post("/queue/instance/{instanceId}/reorder", h.ReorderQueue(request.ScopeInstance, "instanceId"))
		})
	})
}
