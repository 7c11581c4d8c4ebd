// Package rate implements fixed-window counters in Redis: INCR, then EXPIRE
// on the first hit of a window.
package rate
