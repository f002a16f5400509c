// ModelGate - ML Risk & Governance Evaluation Engine
// Measure. Evaluate. Gate.
package main

func main() {
	Execute()
}
