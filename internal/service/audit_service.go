package service

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"bus-stop-inventory/internal/broker"
	"bus-stop-inventory/internal/metrics"
	"bus-stop-inventory/internal/model"
)

const (
	maxIPLength        = 45
	maxUserAgentLength = 500
)

// AuditService appends entries to the audit trail. Writes happen after the
// business change has committed and never fail the caller: errors are logged
// and counted.
type AuditService struct {
	store     AuditStore
	publisher broker.Publisher
	metrics   *metrics.Metrics
}

func NewAuditService(store AuditStore, publisher broker.Publisher, m *metrics.Metrics) *AuditService {
	if publisher == nil {
		publisher = broker.Nop{}
	}
	return &AuditService{store: store, publisher: publisher, metrics: m}
}

// Log records one action. An actor without UserID is written as anonymous.
func (s *AuditService) Log(ctx context.Context, actor model.AuditActor, action model.AuditAction, resourceType string, resourceID string, details map[string]any) {
	entry := model.AuditEntry{
		UserEmail:    model.AnonymousEmail,
		Action:       action,
		ResourceType: resourceType,
		Details:      details,
		IPAddress:    truncate(actor.IP, maxIPLength),
		UserAgent:    truncate(actor.UserAgent, maxUserAgentLength),
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
		entry.UserEmail = actor.Email
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}

	// The request may be finished by now; the trail must still be written.
	ctx = context.WithoutCancel(ctx)

	if err := s.store.Insert(ctx, &entry); err != nil {
		s.metrics.AuditFailed("database")
		slog.Error("audit write failed",
			"action", action, "resource_type", resourceType, "resource_id", resourceID, "error", err)
		return
	}

	if err := s.publisher.PublishAudit(ctx, entry); err != nil {
		s.metrics.AuditFailed("broker")
		slog.Warn("audit publish failed", "audit_id", entry.ID, "error", err)
	}
}

// LogLogin records a login attempt. Failures are always anonymous and carry
// the attempted email as the resource id.
func (s *AuditService) LogLogin(ctx context.Context, actor model.AuditActor, email string, success bool) {
	action := model.AuditLoginSuccess
	if !success {
		action = model.AuditLoginFailed
		actor.UserID = ""
		actor.Email = ""
	}
	s.Log(ctx, actor, action, "auth", email, map[string]any{"success": success})
}

func (s *AuditService) LogLogout(ctx context.Context, actor model.AuditActor, allSessions bool) {
	var details map[string]any
	if allSessions {
		details = map[string]any{"all_sessions": true}
	}
	s.Log(ctx, actor, model.AuditLogout, "auth", actor.Email, details)
}

func (s *AuditService) LogCreate(ctx context.Context, actor model.AuditActor, resourceType string, resourceID string, data map[string]any) {
	s.Log(ctx, actor, model.AuditCreate, resourceType, resourceID, map[string]any{"data": SerializeMap(data)})
}

// LogUpdate records the fields that differ between before and after and
// reports whether an entry was written. Identical snapshots write nothing.
func (s *AuditService) LogUpdate(ctx context.Context, actor model.AuditActor, resourceType string, resourceID string, before map[string]any, after map[string]any) bool {
	changes := DiffSnapshots(before, after)
	if len(changes) == 0 {
		return false
	}
	s.Log(ctx, actor, model.AuditUpdate, resourceType, resourceID, map[string]any{"changes": changes})
	return true
}

func (s *AuditService) LogDelete(ctx context.Context, actor model.AuditActor, resourceType string, resourceID string, data map[string]any) {
	s.Log(ctx, actor, model.AuditDelete, resourceType, resourceID, map[string]any{"deleted_data": SerializeMap(data)})
}

func (s *AuditService) LogExport(ctx context.Context, actor model.AuditActor, exportType string, filters map[string]any) {
	s.Log(ctx, actor, model.AuditExport, "report", "", map[string]any{
		"export_type": exportType,
		"filters":     SerializeMap(filters),
	})
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query.Page, query.Limit = normalizePage(query.Page, query.Limit, 50, 100)
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return nil, model.Meta{}, fmt.Errorf("%w: date_from is after date_to", model.ErrInvalidInput)
	}

	entries, total, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, model.Meta{}, err
	}
	return entries, model.NewMeta(query.Page, query.Limit, total), nil
}

// DiffSnapshots compares two snapshots key by key. Keys missing from before
// are ignored.
func DiffSnapshots(before map[string]any, after map[string]any) map[string]model.FieldChange {
	changes := map[string]model.FieldChange{}
	for key, newValue := range after {
		oldValue, ok := before[key]
		if !ok {
			continue
		}
		oldSerialized, newSerialized := Serialize(oldValue), Serialize(newValue)
		if !reflect.DeepEqual(oldSerialized, newSerialized) {
			changes[key] = model.FieldChange{Old: oldSerialized, New: newSerialized}
		}
	}
	return changes
}

func SerializeMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = Serialize(v)
	}
	return out
}

// Serialize reduces v to a JSON-safe primitive: pointers are dereferenced
// first, times become RFC3339 strings, and string-based enums and Stringers
// become plain strings.
func Serialize(v any) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return Serialize(rv.Elem().Interface())
	}

	switch value := v.(type) {
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case map[string]any:
		return SerializeMap(value)
	case fmt.Stringer:
		return value.String()
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	default:
		return v
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func normalizePage(page int, limit int, defaultLimit int, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
