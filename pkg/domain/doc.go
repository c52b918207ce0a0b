// Package domain contains the core types of the reconciliation engine: the
// desired filtering state computed from list sources and the ownership tag
// stamped on the remote resources a run creates. The types are free of
// provider and transport concerns so they can be shared across packages.
package domain
