package reconcile

import (
	"fmt"

	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/store"
)

// The bool flags of the wire payloads follow the server's merge convention:
// only a true value overwrites, matching the field-level merge the server
// applies on its side. A numeric zero likewise leaves the stored value
// untouched.

func truePtr(v bool) *bool {
	if !v {
		return nil
	}
	return &v
}

// HandleTag merges one inbound tag payload.
func (e *Engine) HandleTag(raw []byte) error {
	e.state.Lock()
	defer e.state.Unlock()

	return apply(e, models.EntityTag, raw, entityOps[models.TagPayload]{
		syncID: func(p models.TagPayload) string { return p.SyncID },
		exists: func(e *Engine, syncID string) (bool, error) {
			t, err := e.store.TagBySyncID(syncID)
			return t != nil, err
		},
		insert: func(e *Engine, p models.TagPayload) error {
			_, err := e.store.InsertTag(models.Tag{
				Name:            p.Name,
				Description:     p.Description,
				IsRunningSignal: p.IsRunningSignal,
				Type:            models.TagType(p.Type),
				SyncID:          p.SyncID,
			})
			return err
		},
		update: func(e *Engine, p models.TagPayload) error {
			var typ *models.TagType
			if p.Type != 0 {
				t := models.TagType(p.Type)
				typ = &t
			}
			return e.store.UpdateTagBySyncID(p.SyncID, store.TagPatch{
				Name:            p.Name,
				Description:     p.Description,
				IsRunningSignal: truePtr(p.IsRunningSignal),
				Type:            typ,
				DeletedAt:       p.DeletedAt,
			})
		},
	})
}

// HandleProduct merges one inbound product payload. When the pushed product
// is the currently selected one, the displayed goal rate is recomputed from
// the fresh ideal count-per-hour.
func (e *Engine) HandleProduct(raw []byte) error {
	e.state.Lock()
	defer e.state.Unlock()

	err := apply(e, models.EntityProduct, raw, entityOps[models.ProductPayload]{
		syncID: func(p models.ProductPayload) string { return p.SyncID },
		exists: func(e *Engine, syncID string) (bool, error) {
			p, err := e.store.ProductBySyncID(syncID)
			return p != nil, err
		},
		insert: func(e *Engine, p models.ProductPayload) error {
			_, err := e.store.InsertProduct(models.Product{
				Name:        p.Name,
				ProductCode: p.ProductCode,
				IdealCPH:    p.IdealCPH,
				SyncID:      p.SyncID,
			})
			return err
		},
		update: func(e *Engine, p models.ProductPayload) error {
			var cph *float64
			if p.IdealCPH != 0 {
				cph = &p.IdealCPH
			}
			return e.store.UpdateProductBySyncID(p.SyncID, store.ProductPatch{
				Name:        p.Name,
				ProductCode: p.ProductCode,
				IdealCPH:    cph,
				DeletedAt:   p.DeletedAt,
			})
		},
	})
	if err != nil {
		return err
	}

	var payload models.ProductPayload
	// Already decoded once inside apply; a second decode keeps the generic
	// routine free of per-entity side effects.
	if err := decode(raw, &payload); err != nil {
		return nil
	}
	product, err := e.store.ProductBySyncID(payload.SyncID)
	if err != nil || product == nil {
		return err
	}
	if product.ID == e.state.SelectedProductID {
		e.refreshGoalRateLocked(product)
	}
	return nil
}

// refreshGoalRateLocked recomputes the goal display. A manual goal override
// takes precedence over the product's ideal rate. Callers hold the state
// lock.
func (e *Engine) refreshGoalRateLocked(product *models.Product) {
	goal := e.state.GoalCPH
	if goal == 0 {
		goal = product.IdealCPH
	}
	e.notifier.SetGoalRate(fmt.Sprintf("%g per Hour", goal))
}

// HandleUser merges one inbound user payload.
func (e *Engine) HandleUser(raw []byte) error {
	e.state.Lock()
	defer e.state.Unlock()

	return apply(e, models.EntityUser, raw, entityOps[models.UserPayload]{
		syncID: func(p models.UserPayload) string { return p.SyncID },
		exists: func(e *Engine, syncID string) (bool, error) {
			u, err := e.store.UserBySyncID(syncID)
			return u != nil, err
		},
		insert: func(e *Engine, p models.UserPayload) error {
			_, err := e.store.InsertUser(models.User{
				FirstName:        p.FirstName,
				LastName:         p.LastName,
				IsDeviceAdmin:    p.IsDeviceAdmin,
				IsDeviceOperator: p.IsDeviceOperator,
				SyncID:           p.SyncID,
			})
			return err
		},
		update: func(e *Engine, p models.UserPayload) error {
			return e.store.UpdateUserBySyncID(p.SyncID, store.UserPatch{
				FirstName:        p.FirstName,
				LastName:         p.LastName,
				IsDeviceAdmin:    truePtr(p.IsDeviceAdmin),
				IsDeviceOperator: truePtr(p.IsDeviceOperator),
				DeletedAt:        p.DeletedAt,
			})
		},
	})
}

// HandleDowntimeReason merges one inbound downtime-reason payload. A
// secondary reason references its primary by the primary's sync id; when
// that primary is not known locally yet the whole operation is deferred
// without acknowledgment, to be retried by a later push.
func (e *Engine) HandleDowntimeReason(raw []byte) error {
	e.state.Lock()
	defer e.state.Unlock()

	return apply(e, models.EntityDowntimeReason, raw, entityOps[models.DowntimeReasonPayload]{
		syncID: func(p models.DowntimeReasonPayload) string { return p.SyncID },
		exists: func(e *Engine, syncID string) (bool, error) {
			r, err := e.store.DowntimeReasonBySyncID(syncID)
			return r != nil, err
		},
		insert: func(e *Engine, p models.DowntimeReasonPayload) error {
			parent, err := e.resolveParent(p)
			if err != nil {
				return err
			}
			_, err = e.store.InsertDowntimeReason(models.DowntimeReason{
				Name:           p.Name,
				IsSecondaryFor: parent,
				SyncID:         p.SyncID,
			})
			return err
		},
		update: func(e *Engine, p models.DowntimeReasonPayload) error {
			parent, err := e.resolveParent(p)
			if err != nil {
				return err
			}
			return e.store.UpdateDowntimeReasonBySyncID(p.SyncID, store.DowntimeReasonPatch{
				Name:           p.Name,
				IsSecondaryFor: parent,
				DeletedAt:      p.DeletedAt,
			})
		},
	})
}

// resolveParent translates the parent's sync id to a local id. Primary
// reasons have no parent; an unknown parent defers the operation.
func (e *Engine) resolveParent(p models.DowntimeReasonPayload) (*int64, error) {
	if p.IsSecondaryForSyncID == "" {
		return nil, nil
	}
	parent, err := e.store.DowntimeReasonBySyncID(p.IsSecondaryForSyncID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: primary reason %s", errDeferred, p.IsSecondaryForSyncID)
	}
	return &parent.ID, nil
}
