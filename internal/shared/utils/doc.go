// Package utils holds input validation shared by the API and the event socket.
package utils
