package skv

import "github.com/kvfile/skv/lib/engine"

// Options configures a Store at Open time.
type Options struct {
	// RelativePath namespaces the identifier, mirroring the file naming
	// rule's non-default path case: a non-empty value names the store's
	// files md5(RelativePath + "/" + id) directly under the root. Empty
	// means no namespacing.
	RelativePath string

	// CryptKey, if non-empty, turns on AES-CTR encryption of the
	// record stream.
	CryptKey []byte

	// SingleProcessMode disables the inter-process advisory lock.
	// Useful for tests and stores never shared across processes.
	SingleProcessMode bool

	// OnCRCCheckFail and OnFileLengthError are the host-supplied
	// error-strategy hooks; nil defaults both to Discard.
	OnCRCCheckFail    engine.ErrorStrategy
	OnFileLengthError engine.ErrorStrategy

	// NotifyOnChange arms onContentChangedByOuterProcess notifications.
	NotifyOnChange bool
	OnChange       engine.ChangeListener
}
