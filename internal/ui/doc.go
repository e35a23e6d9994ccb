// Package ui asks the user before rgpipe drops tables.
package ui
