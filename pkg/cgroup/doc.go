// Package cgroup creates and tears down the per-run cgroups v2 group
// used to apply memory and pids limits to the sandbox. The supervisor
// joins the group before forking so the child inherits membership.
package cgroup
