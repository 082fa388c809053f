package mapper

import (
	"testing"

	"arksync/testutil"
)

func TestMapperIsPure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", func(path string) bool {
		return testutil.ThirdParty(path) || (testutil.ModuleImport(path) && path != testutil.ModulePath+"/pkg/domain")
	}, "mappers only translate between domain and row shapes")
}
