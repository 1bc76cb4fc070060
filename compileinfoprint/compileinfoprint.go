// compileinfoprint is imported for the side effect of logging the build
// description of the binary at startup.
package compileinfoprint

import "github.com/carbocation/hrsip/compileinfo"

func init() {
	compileinfo.Log()
}
