package resolver

import (
	"context"

	"horse.fit/nycpedia/internal/wiki"
)

// Entity returns the entity for id through the shared entity table, so the
// renderer's image fallback reuses what scoring already fetched.
func (r *Resolver) Entity(ctx context.Context, id string) (*wiki.Entity, error) {
	if r == nil || r.graph == nil || r.cache == nil {
		return nil, ErrNotConfigured
	}
	return r.entity(ctx, id)
}

func (r *Resolver) entity(ctx context.Context, id string) (*wiki.Entity, error) {
	return r.cache.entities.do(ctx, id, func(ctx context.Context) (*wiki.Entity, error) {
		return r.graph.Entity(ctx, id)
	})
}

// predicate memoizes check under name:id and turns any failure into false.
func (r *Resolver) predicate(ctx context.Context, name, id string, check func(context.Context) (bool, error)) bool {
	if id == "" {
		return false
	}
	ok, err := r.cache.predicates.do(ctx, name+":"+id, check)
	if err != nil {
		r.logger.Debug().Err(err).Str("predicate", name).Str("entity", id).Msg("predicate lookup failed")
		return false
	}
	return ok
}

// locatedInTarget reports whether id is administratively located in the city,
// directly or through one intermediate territory.
func (r *Resolver) locatedInTarget(ctx context.Context, id string) bool {
	return r.predicate(ctx, wiki.PropLocatedIn, id, func(ctx context.Context) (bool, error) {
		e, err := r.entity(ctx, id)
		if err != nil {
			return false, err
		}
		if e.HasAny(wiki.PropLocatedIn, nycAnchors) {
			return true, nil
		}
		for _, parentID := range e.Refs(wiki.PropLocatedIn) {
			parent, err := r.entity(ctx, parentID)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				continue
			}
			if parent.HasAny(wiki.PropLocatedIn, nycAnchors) {
				return true, nil
			}
		}
		return false, nil
	})
}

// heldAtTarget reports whether the entity's location is the city itself.
func (r *Resolver) heldAtTarget(ctx context.Context, id string) bool {
	return r.predicate(ctx, wiki.PropLocation, id, func(ctx context.Context) (bool, error) {
		e, err := r.entity(ctx, id)
		if err != nil {
			return false, err
		}
		return e.HasAny(wiki.PropLocation, nycAnchors), nil
	})
}

// isEventLike reports whether id is an instance of an event type, or of a
// class that is directly a subclass of one.
func (r *Resolver) isEventLike(ctx context.Context, id string) bool {
	return r.predicate(ctx, wiki.PropInstanceOf, id, func(ctx context.Context) (bool, error) {
		e, err := r.entity(ctx, id)
		if err != nil {
			return false, err
		}
		if e.HasAny(wiki.PropInstanceOf, eventTypes) {
			return true, nil
		}
		for _, classID := range e.Refs(wiki.PropInstanceOf) {
			class, err := r.entity(ctx, classID)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				continue
			}
			if class.HasAny(wiki.PropSubclassOf, eventTypes) {
				return true, nil
			}
		}
		return false, nil
	})
}

// isHuman reports whether id is an instance of human.
func (r *Resolver) isHuman(ctx context.Context, id string) bool {
	return r.predicate(ctx, "human", id, func(ctx context.Context) (bool, error) {
		e, err := r.entity(ctx, id)
		if err != nil {
			return false, err
		}
		for _, ref := range e.Refs(wiki.PropInstanceOf) {
			if ref == humanType {
				return true, nil
			}
		}
		return false, nil
	})
}
