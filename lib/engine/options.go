package engine

// ChangeListener is invoked whenever checkLoadData detects a mutation
// made by another process, mirroring onContentChangedByOuterProcess.
type ChangeListener func(id string)

// Options configures an Engine at construction time.
type Options struct {
	// ID is the canonical store identifier (post lib/ident encoding is
	// applied by the caller; the engine itself is filename-agnostic).
	ID string

	// DataPath and MetaPath are the on-disk paths for the two mapped
	// files, already resolved by the caller (lib/ident + registry).
	DataPath string
	MetaPath string

	// CryptKey, if non-empty, turns on AES-CTR encryption of the
	// record stream. Empty means the store is unencrypted.
	CryptKey []byte

	// SingleProcessMode disables the inter-process advisory lock:
	// all lock operations become no-ops. Useful for tests and for
	// stores never shared across processes.
	SingleProcessMode bool

	// Lock is the advisory lock manager backing the exclusive/shared
	// inter-process lock hierarchy. Optional, and ignored when
	// SingleProcessMode is set: when nil, NewEngine derives one from the
	// meta file's own descriptor via filelock.NewFromFile rather than
	// opening a second descriptor on the same path.
	Lock LockManager

	// OnCRCCheckFail and OnFileLengthError are the two host-supplied
	// error-strategy hooks. Nil means DiscardStrategy.
	OnCRCCheckFail    ErrorStrategy
	OnFileLengthError ErrorStrategy

	// NotifyOnChange arms onContentChangedByOuterProcess notifications;
	// when false (default) checkLoadData never invokes OnChange.
	NotifyOnChange bool
	OnChange       ChangeListener
}

func (o *Options) crcStrategy() ErrorStrategy {
	if o.OnCRCCheckFail != nil {
		return o.OnCRCCheckFail
	}
	return DiscardStrategy
}

func (o *Options) lengthStrategy() ErrorStrategy {
	if o.OnFileLengthError != nil {
		return o.OnFileLengthError
	}
	return DiscardStrategy
}
