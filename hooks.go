package persist

import "context"

// Lifecycle hooks an entity may implement. They are invoked by the cascade
// engine around the entity's own write: the pre hook before the statement is
// executed, the post hook after the statement and the relationship walk
// took effect. A failing hook is reported as a PersistEventError.
type (
	// PreInserter is implemented by entities that run logic before insert.
	PreInserter interface {
		PreInsert(context.Context) error
	}

	// PostInserter is implemented by entities that run logic after insert.
	PostInserter interface {
		PostInsert(context.Context) error
	}

	// PreUpdater is implemented by entities that run logic before update.
	PreUpdater interface {
		PreUpdate(context.Context) error
	}

	// PostUpdater is implemented by entities that run logic after update.
	PostUpdater interface {
		PostUpdate(context.Context) error
	}

	// PreDeleter is implemented by entities that run logic before delete.
	PreDeleter interface {
		PreDelete(context.Context) error
	}

	// PostDeleter is implemented by entities that run logic after delete.
	PostDeleter interface {
		PostDelete(context.Context) error
	}
)
