// Package gadget tracks inventory gadgets through their lifecycle.
//
// A gadget starts Available, may move between Available and Deployed, and
// ends either Decommissioned or Destroyed. Terminal gadgets accept no
// further status change. Reads annotate each gadget with a freshly drawn
// mission success probability; self-destruct returns a throwaway
// confirmation code.
//
// Every committed change is reported to an EventSink so that audit, metrics
// and live feeds can follow the inventory without polling.
package gadget
