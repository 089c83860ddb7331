// Package fileutil holds small file helpers shared by the cache seeder.
package fileutil
