// Command soilrisk evaluates soil corrosion risk for surveyed zones and
// keeps every evaluation as an immutable, numbered version.
package main

func main() {
	Execute()
}
