// This file is part of Sleipnir.
//
// Sleipnir is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Sleipnir is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Sleipnir.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cobaltfuzz/sleipnir/config"
)

// writeBack overwrites configPath with suite, whose Test entries now carry
// the files/params bookkeeping §6.2 requires the C-side reader to see.
func writeBack(configPath string, suite *config.Suite) error {
	out, err := yaml.Marshal(suite)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, out, 0o644)
}
