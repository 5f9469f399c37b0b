// Package membership tracks which users belong to which organizations.
// Removal is a soft delete with a retention window, so an accidentally
// removed member can be restored with their flags intact.
package membership
