// Package roles manages the role model behind authorization: global and
// organization-scoped roles, their permission grants, user assignments,
// and the hierarchy that gates who may administer which roles. The
// auto-created BASIC and ADMIN system roles of each organization are
// immutable.
package roles
