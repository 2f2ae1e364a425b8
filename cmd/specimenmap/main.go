// Command specimenmap maps volumetric probability maps of specimens onto a
// curvilinear coordinate system fitted to each specimen.
package main

func main() {
	Execute()
}
