// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/features/shared"
	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/normalize"
	"github.com/dalemusser/fleetdesk/internal/app/system/paging"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ServeList handles GET /audit: newest first, filtered by userId,
// actorId, orderId, category, type and a from/to date range.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter, echo, err := parseFilter(r)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	p := paging.Parse(r)
	filter.Limit = int64(p.Limit)
	filter.Offset = p.Skip()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.Wrap(apierr.CodeInternal, err, "failed to query audit events"))
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.Wrap(apierr.CodeInternal, err, "failed to count audit events"))
		return
	}

	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	for _, e := range events {
		for _, id := range []*primitive.ObjectID{e.ActorID, e.UserID} {
			if id == nil {
				continue
			}
			if _, ok := seen[*id]; !ok {
				seen[*id] = struct{}{}
				ids = append(ids, *id)
			}
		}
	}
	names, err := h.Users.GetNames(ctx, ids)
	if err != nil {
		h.Log.Warn("failed to resolve user names for audit feed", zap.Error(err))
		names = nil
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{Event: e}
		if e.ActorID != nil {
			item.ActorName = names[*e.ActorID]
		}
		if e.UserID != nil {
			item.TargetName = names[*e.UserID]
		}
		items = append(items, item)
	}

	respond.OK(w, struct {
		paging.Result[listItem]
		Filters listFilters `json:"filters"`
	}{paging.NewResult(items, p, total), echo})
}

// ServeEventTypes handles GET /audit/event-types for filter pickers.
func (h *Handler) ServeEventTypes(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, map[string]any{
		"categories": categories,
		"auth":       authEvents,
		"admin":      adminEvents,
	})
}

func parseFilter(r *http.Request) (audit.QueryFilter, listFilters, error) {
	var (
		f    audit.QueryFilter
		echo listFilters
		err  error
	)
	echo.UserID = query.Get(r, "userId")
	echo.ActorID = query.Get(r, "actorId")
	echo.OrderID = query.Get(r, "orderId")
	if f.UserID, err = shared.OptionalObjectID(echo.UserID, "userId"); err != nil {
		return f, echo, err
	}
	if f.ActorID, err = shared.OptionalObjectID(echo.ActorID, "actorId"); err != nil {
		return f, echo, err
	}
	if f.OrderID, err = shared.OptionalObjectID(echo.OrderID, "orderId"); err != nil {
		return f, echo, err
	}

	echo.Category = normalize.Token(query.Get(r, "category"))
	if echo.Category != "" && eventTypesForCategory(echo.Category) == nil {
		return f, echo, apierr.Validation("unknown audit category").
			WithDetails(map[string]any{"category": echo.Category, "allowed": categories})
	}
	f.Category = echo.Category

	echo.EventType = normalize.Token(query.Get(r, "type"))
	if echo.EventType != "" && !knownEventType(echo.EventType) {
		return f, echo, apierr.Validation("unknown audit event type").
			WithDetails(map[string]string{"type": echo.EventType})
	}
	f.EventType = echo.EventType

	if raw := query.Get(r, "from"); raw != "" {
		t, perr := time.Parse(dateLayout, raw)
		if perr != nil {
			return f, echo, apierr.Validation("from must be YYYY-MM-DD")
		}
		f.StartTime, echo.From = &t, &t
	}
	if raw := query.Get(r, "to"); raw != "" {
		t, perr := time.Parse(dateLayout, raw)
		if perr != nil {
			return f, echo, apierr.Validation("to must be YYYY-MM-DD")
		}
		// end of day
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime, echo.To = &end, &end
	}
	if f.StartTime != nil && f.EndTime != nil && f.EndTime.Before(*f.StartTime) {
		return f, echo, apierr.Validation("to must not be before from")
	}
	return f, echo, nil
}
