// Package storage manages the per-chapter page directories.
//
// Each chapter gets its own directory under the configured root, named by the
// chapter number. Pages are written atomically (temporary file then rename) and
// listed in filename order. Hidden files and leftovers from interrupted writes
// are never reported as pages.
//
//	manager, err := storage.NewManager("chapters")
//	if err != nil {
//	    return err
//	}
//	if err := manager.Reset(102); err != nil {
//	    return err
//	}
//	path, err := manager.SavePage(102, "01.png", r)
package storage
