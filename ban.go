package extchannel

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
)

var ErrInvalidAddress = errors.New("invalid ip address format")

// addBanItem inserts a ban DB entry
func addBanItem(db *sql.DB, addr, name string) error {
	_, err := db.Exec(`INSERT INTO ban (
		addr,
		name
	) VALUES (
		?,
		?
	);`, addr, name)
	return err
}

// readBanItem selects and reads a ban DB entry
func readBanItem(db *sql.DB, addr string) (string, error) {
	var r string
	err := db.QueryRow(`SELECT name FROM ban WHERE addr = ?;`, addr).Scan(&r)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	return r, nil
}

// deleteBanItem deletes every ban DB entry matching a name or address
func deleteBanItem(db *sql.DB, nameOrAddr string) error {
	_, err := db.Exec(`DELETE FROM ban WHERE name = ? OR addr = ?;`, nameOrAddr, nameOrAddr)
	return err
}

// BanList returns the banned IP addresses and the names they were banned with
func (s *Storage) BanList() (map[string]string, error) {
	rows, err := s.auth.Query(`SELECT addr, name FROM ban;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	r := make(map[string]string)
	for rows.Next() {
		var addr, name string
		if err = rows.Scan(&addr, &name); err != nil {
			return nil, err
		}

		r[addr] = name
	}

	return r, rows.Err()
}

// IsBanned reports whether addr is banned and under which name
func (s *Storage) IsBanned(addr string) (bool, string, error) {
	name, err := readBanItem(s.auth.DB, addr)
	if err != nil {
		return true, "", err
	}

	return name != "", name, nil
}

// Ban adds addr to the ban list
func (s *Storage) Ban(addr, name string) error {
	if net.ParseIP(addr) == nil {
		return ErrInvalidAddress
	}
	if name == "" {
		name = "not known"
	}

	banned, _, err := s.IsBanned(addr)
	if err != nil {
		return err
	}
	if banned {
		return fmt.Errorf("ip address %s is already banned", addr)
	}

	return addBanItem(s.auth.DB, addr, name)
}

// Unban removes a name or an address from the ban list
func (s *Storage) Unban(nameOrAddr string) error {
	return deleteBanItem(s.auth.DB, nameOrAddr)
}

func addrIP(addr net.Addr) string {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP.String()
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
