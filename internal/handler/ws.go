package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/cart"
	"github.com/khanaeats/khana-api/internal/storage/docrepo"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth already ran; browsers connect from any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// streamCart pushes the caller's full cart as a JSON snapshot on every
// change. Intermediate states may be coalesced; the last snapshot always
// reflects current state.
func (h *Handler) streamCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	sub, err := h.store.Subscribe(r.Context(), cart.CollectionPath(id.UserID), docstore.Query{
		OrderBy: "created_at",
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer sub.Cancel()

	h.streamSnapshots(w, r, sub, func(docs []docstore.Document) any {
		lines := make([]cart.Line, 0, len(docs))
		for _, doc := range docs {
			lines = append(lines, cart.DecodeLine(doc))
		}
		return cartResponse{
			Lines:      lines,
			TotalItems: cart.SumItems(lines),
			TotalPrice: cart.SumPrice(lines),
		}
	})
}

// streamOrders pushes the caller's order list on every order change.
func (h *Handler) streamOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	sub, err := h.store.Subscribe(r.Context(), docrepo.OrdersPath(), docstore.Query{
		Filters:    []docstore.Filter{{Field: "customer_id", Op: docstore.OpEqual, Value: id.UserID}},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer sub.Cancel()

	h.streamSnapshots(w, r, sub, func(docs []docstore.Document) any {
		out := make([]orderResponse, 0, len(docs))
		for _, doc := range docs {
			out = append(out, toOrderResponse(docrepo.DecodeOrder(doc)))
		}
		return out
	})
}

// streamSnapshots upgrades the connection and forwards rendered snapshots
// until either side goes away.
func (h *Handler) streamSnapshots(w http.ResponseWriter, r *http.Request, sub docstore.Subscription, render func([]docstore.Document) any) {
	lg := zctx.From(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		lg.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Reader goroutine: we never expect client frames, but reading is the
	// only way to observe close frames and connection loss.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case docs, ok := <-sub.Snapshots():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(render(docs)); err != nil {
				lg.Debug("Websocket write failed", zap.Error(err))
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
